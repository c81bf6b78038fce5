package protocol

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// EntityStore is the projection state the projector writes through. Getters
// return copies; Put publishes a new immutable snapshot of the entity. There
// is exactly one writer (the projector goroutine); any number of readers may
// load or range concurrently.
type EntityStore interface {
	Agent(id string) (Agent, bool)
	PutAgent(Agent)
	Council(id string) (Council, bool)
	PutCouncil(Council)
	Member(councilID, addr string) (CouncilMember, bool)
	PutMember(CouncilMember)
	Claim(id string) (Claim, bool)
	PutClaim(Claim)
	Vote(claimID, voter string) (Vote, bool)
	PutVote(Vote)
	VotesByClaim(claimID string) []Vote
	AppendEvidence(Evidence)
	Evidence(claimID string) []Evidence
	EvidenceCount(claimID string) uint32
	Stats() ProtocolStats
	MutateStats(fn func(*ProtocolStats))
}

// MemoryStore is the in-memory EntityStore. A fresh instance replayed over a
// fixed event fixture is the unit-test harness for the projector.
type MemoryStore struct {
	agents   *xsync.Map[string, *Agent]
	councils *xsync.Map[string, *Council]
	members  *xsync.Map[string, *CouncilMember]
	claims   *xsync.Map[string, *Claim]
	votes    *xsync.Map[string, *Vote]
	evidence *xsync.Map[string, []Evidence]

	// voters indexes claim id -> voter addresses, maintained copy-on-write
	// by the single writer.
	voters *xsync.Map[string, []string]

	statsMu sync.RWMutex
	stats   ProtocolStats

	// Dirty sets track keys touched since the last Drain so the ingest loop
	// can flush incremental snapshots. Writer-goroutine only.
	dirtyAgents   map[string]bool
	dirtyCouncils map[string]bool
	dirtyMembers  map[string]bool
	dirtyClaims   map[string]bool
	dirtyVotes    map[string]bool
	newEvidence   []Evidence
	statsDirty    bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:        xsync.NewMap[string, *Agent](),
		councils:      xsync.NewMap[string, *Council](),
		members:       xsync.NewMap[string, *CouncilMember](),
		claims:        xsync.NewMap[string, *Claim](),
		votes:         xsync.NewMap[string, *Vote](),
		evidence:      xsync.NewMap[string, []Evidence](),
		voters:        xsync.NewMap[string, []string](),
		dirtyAgents:   map[string]bool{},
		dirtyCouncils: map[string]bool{},
		dirtyMembers:  map[string]bool{},
		dirtyClaims:   map[string]bool{},
		dirtyVotes:    map[string]bool{},
	}
}

func memberKey(councilID, addr string) string { return councilID + "|" + addr }
func voteKey(claimID, voter string) string    { return claimID + "|" + voter }

func (s *MemoryStore) Agent(id string) (Agent, bool) {
	a, ok := s.agents.Load(id)
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

func (s *MemoryStore) PutAgent(a Agent) {
	s.agents.Store(a.ID, &a)
	s.dirtyAgents[a.ID] = true
}

func (s *MemoryStore) Council(id string) (Council, bool) {
	c, ok := s.councils.Load(id)
	if !ok {
		return Council{}, false
	}
	return *c, true
}

func (s *MemoryStore) PutCouncil(c Council) {
	s.councils.Store(c.ID, &c)
	s.dirtyCouncils[c.ID] = true
}

func (s *MemoryStore) Member(councilID, addr string) (CouncilMember, bool) {
	m, ok := s.members.Load(memberKey(councilID, addr))
	if !ok {
		return CouncilMember{}, false
	}
	return *m, true
}

func (s *MemoryStore) PutMember(m CouncilMember) {
	key := memberKey(m.CouncilID, m.Address)
	s.members.Store(key, &m)
	s.dirtyMembers[key] = true
}

func (s *MemoryStore) Claim(id string) (Claim, bool) {
	c, ok := s.claims.Load(id)
	if !ok {
		return Claim{}, false
	}
	return *c, true
}

func (s *MemoryStore) PutClaim(c Claim) {
	s.claims.Store(c.ID, &c)
	s.dirtyClaims[c.ID] = true
}

func (s *MemoryStore) Vote(claimID, voter string) (Vote, bool) {
	v, ok := s.votes.Load(voteKey(claimID, voter))
	if !ok {
		return Vote{}, false
	}
	return *v, true
}

func (s *MemoryStore) PutVote(v Vote) {
	key := voteKey(v.ClaimID, v.Voter)
	if _, exists := s.votes.Load(key); !exists {
		prev, _ := s.voters.Load(v.ClaimID)
		next := make([]string, 0, len(prev)+1)
		next = append(next, prev...)
		next = append(next, v.Voter)
		s.voters.Store(v.ClaimID, next)
	}
	s.votes.Store(key, &v)
	s.dirtyVotes[key] = true
}

// VotesByClaim returns the live vote rows for a claim, sorted by voter
// address so callers see a deterministic order.
func (s *MemoryStore) VotesByClaim(claimID string) []Vote {
	voters, _ := s.voters.Load(claimID)
	out := make([]Vote, 0, len(voters))
	for _, voter := range voters {
		if v, ok := s.votes.Load(voteKey(claimID, voter)); ok {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Voter < out[j].Voter })
	return out
}

func (s *MemoryStore) AppendEvidence(e Evidence) {
	prev, _ := s.evidence.Load(e.ClaimID)
	next := make([]Evidence, 0, len(prev)+1)
	next = append(next, prev...)
	next = append(next, e)
	s.evidence.Store(e.ClaimID, next)
	s.newEvidence = append(s.newEvidence, e)
}

func (s *MemoryStore) Evidence(claimID string) []Evidence {
	rows, _ := s.evidence.Load(claimID)
	out := make([]Evidence, len(rows))
	copy(out, rows)
	return out
}

func (s *MemoryStore) EvidenceCount(claimID string) uint32 {
	rows, _ := s.evidence.Load(claimID)
	return uint32(len(rows))
}

func (s *MemoryStore) Stats() ProtocolStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

func (s *MemoryStore) MutateStats(fn func(*ProtocolStats)) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	fn(&s.stats)
	s.statsDirty = true
}

// RangeAgents visits every agent snapshot. Safe to call concurrently with
// the writer; each visited value is an immutable published copy.
func (s *MemoryStore) RangeAgents(fn func(Agent) bool) {
	s.agents.Range(func(_ string, a *Agent) bool { return fn(*a) })
}

func (s *MemoryStore) RangeCouncils(fn func(Council) bool) {
	s.councils.Range(func(_ string, c *Council) bool { return fn(*c) })
}

func (s *MemoryStore) RangeMembers(fn func(CouncilMember) bool) {
	s.members.Range(func(_ string, m *CouncilMember) bool { return fn(*m) })
}

func (s *MemoryStore) RangeClaims(fn func(Claim) bool) {
	s.claims.Range(func(_ string, c *Claim) bool { return fn(*c) })
}

func (s *MemoryStore) RangeVotes(fn func(Vote) bool) {
	s.votes.Range(func(_ string, v *Vote) bool { return fn(*v) })
}

// Changes holds the entities touched since the previous Drain, ready to be
// flushed as read-model snapshots.
type Changes struct {
	Agents   []Agent
	Councils []Council
	Members  []CouncilMember
	Claims   []Claim
	Votes    []Vote
	Evidence []Evidence
	Stats    *ProtocolStats
}

// Empty reports whether the drain produced nothing to flush.
func (c Changes) Empty() bool {
	return len(c.Agents) == 0 && len(c.Councils) == 0 && len(c.Members) == 0 &&
		len(c.Claims) == 0 && len(c.Votes) == 0 && len(c.Evidence) == 0 && c.Stats == nil
}

// Drain collects and resets the dirty sets. Must be called from the writer
// goroutine, between events, never mid-handler.
func (s *MemoryStore) Drain() Changes {
	var out Changes
	for id := range s.dirtyAgents {
		if a, ok := s.Agent(id); ok {
			out.Agents = append(out.Agents, a)
		}
	}
	for id := range s.dirtyCouncils {
		if c, ok := s.Council(id); ok {
			out.Councils = append(out.Councils, c)
		}
	}
	for key := range s.dirtyMembers {
		if m, ok := s.members.Load(key); ok {
			out.Members = append(out.Members, *m)
		}
	}
	for id := range s.dirtyClaims {
		if c, ok := s.Claim(id); ok {
			out.Claims = append(out.Claims, c)
		}
	}
	for key := range s.dirtyVotes {
		if v, ok := s.votes.Load(key); ok {
			out.Votes = append(out.Votes, *v)
		}
	}
	out.Evidence = s.newEvidence
	if s.statsDirty {
		stats := s.Stats()
		out.Stats = &stats
	}

	s.dirtyAgents = map[string]bool{}
	s.dirtyCouncils = map[string]bool{}
	s.dirtyMembers = map[string]bool{}
	s.dirtyClaims = map[string]bool{}
	s.dirtyVotes = map[string]bool{}
	s.newEvidence = nil
	s.statsDirty = false

	return out
}
