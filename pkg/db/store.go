package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/arbiter-protocol/arbiterx/pkg/db/clickhouse"
	"github.com/arbiter-protocol/arbiterx/pkg/db/models"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"go.uber.org/zap"
)

// Store is the durable read model: versioned aggregate snapshots in
// ClickHouse, written by the indexer and read by the query API. Every read
// goes through FINAL so ReplacingMergeTree version collapse is visible
// immediately instead of waiting for background merges.
type Store struct {
	Client *clickhouse.Client
	Logger *zap.Logger
	dbName string
}

// NewStore connects to ClickHouse for the given component ("indexer" or
// "query") without touching any DDL. Call Initialize on the indexer side to
// create the database and tables.
func NewStore(ctx context.Context, logger *zap.Logger, dbName, component string) (*Store, error) {
	client, err := clickhouse.New(ctx, logger, dbName, clickhouse.GetPoolConfigForComponent(component))
	if err != nil {
		return nil, err
	}
	return &Store{
		Client: &client,
		Logger: logger,
		dbName: dbName,
	}, nil
}

// Initialize creates the target database if needed, switches the connection
// over, and ensures every table exists.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.Client.CreateDbIfNotExists(ctx, s.dbName); err != nil {
		return fmt.Errorf("create database %s: %w", s.dbName, err)
	}
	if err := s.Client.SwitchToTargetDatabase(ctx); err != nil {
		return err
	}

	inits := []struct {
		name string
		fn   func(context.Context, driver.Conn) error
	}{
		{"agents", models.InitAgents},
		{"councils", models.InitCouncils},
		{"council_members", models.InitCouncilMembers},
		{"claims", models.InitClaims},
		{"votes", models.InitVotes},
		{"evidence", models.InitEvidence},
		{"protocol_stats", models.InitProtocolStats},
		{"progress", models.InitProgress},
	}
	for _, init := range inits {
		if err := init.fn(ctx, s.Client.Db); err != nil {
			return fmt.Errorf("init table %s: %w", init.name, err)
		}
	}

	s.Logger.Info("ClickHouse schema ready", zap.String("database", s.dbName))
	return nil
}

// Connect switches an already-initialized store's connection to the target
// database. The query side uses this instead of Initialize.
func (s *Store) Connect(ctx context.Context) error {
	return s.Client.SwitchToTargetDatabase(ctx)
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.Client.Close()
}

// Health pings the connection.
func (s *Store) Health(ctx context.Context) error {
	return s.Client.Db.Ping(ctx)
}

// FlushChanges writes one block's worth of dirty aggregates as versioned
// snapshots. Idempotent per block: re-flushing the same block writes rows
// with the same version and ReplacingMergeTree collapses them.
func (s *Store) FlushChanges(ctx context.Context, changes protocol.Changes, block uint64) error {
	if changes.Empty() {
		return nil
	}

	agents := make([]*models.Agent, 0, len(changes.Agents))
	for _, a := range changes.Agents {
		agents = append(agents, models.FromAgent(a, block))
	}
	if err := models.InsertAgents(ctx, s.Client.Db, agents); err != nil {
		return fmt.Errorf("flush agents: %w", err)
	}

	councils := make([]*models.Council, 0, len(changes.Councils))
	for _, c := range changes.Councils {
		councils = append(councils, models.FromCouncil(c, block))
	}
	if err := models.InsertCouncils(ctx, s.Client.Db, councils); err != nil {
		return fmt.Errorf("flush councils: %w", err)
	}

	members := make([]*models.CouncilMember, 0, len(changes.Members))
	for _, m := range changes.Members {
		members = append(members, models.FromCouncilMember(m, block))
	}
	if err := models.InsertCouncilMembers(ctx, s.Client.Db, members); err != nil {
		return fmt.Errorf("flush members: %w", err)
	}

	claims := make([]*models.Claim, 0, len(changes.Claims))
	for _, c := range changes.Claims {
		claims = append(claims, models.FromClaim(c, block))
	}
	if err := models.InsertClaims(ctx, s.Client.Db, claims); err != nil {
		return fmt.Errorf("flush claims: %w", err)
	}

	votes := make([]*models.Vote, 0, len(changes.Votes))
	for _, v := range changes.Votes {
		votes = append(votes, models.FromVote(v, block))
	}
	if err := models.InsertVotes(ctx, s.Client.Db, votes); err != nil {
		return fmt.Errorf("flush votes: %w", err)
	}

	evidence := make([]*models.Evidence, 0, len(changes.Evidence))
	for _, e := range changes.Evidence {
		evidence = append(evidence, models.FromEvidence(e, block))
	}
	if err := models.InsertEvidence(ctx, s.Client.Db, evidence); err != nil {
		return fmt.Errorf("flush evidence: %w", err)
	}

	if changes.Stats != nil {
		if err := models.InsertProtocolStats(ctx, s.Client.Db, models.FromProtocolStats(*changes.Stats, block)); err != nil {
			return fmt.Errorf("flush stats: %w", err)
		}
	}

	return nil
}

// RecordIndexed checkpoints the last applied (block, logIndex).
func (s *Store) RecordIndexed(ctx context.Context, block uint64, logIndex uint32) error {
	return models.InsertProgress(ctx, s.Client.Db, block, logIndex)
}

// LastIndexed returns the checkpoint, or ok=false when the projection has
// never run.
func (s *Store) LastIndexed(ctx context.Context) (block uint64, logIndex uint32, ok bool, err error) {
	var rows []models.Progress
	err = s.Client.SelectWithFinal(ctx, &rows, `SELECT * FROM progress FINAL WHERE id = 1`)
	if err != nil {
		return 0, 0, false, err
	}
	if len(rows) == 0 {
		return 0, 0, false, nil
	}
	return rows[0].Block, rows[0].LogIndex, true, nil
}

// Agent returns the latest snapshot for one agent, or nil when unknown.
func (s *Store) Agent(ctx context.Context, id string) (*protocol.Agent, error) {
	var rows []models.Agent
	err := s.Client.SelectWithFinal(ctx, &rows, `SELECT * FROM agents FINAL WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	agent := rows[0].ToProtocol()
	return &agent, nil
}

// AgentFilter narrows an agent listing. Cursor is the last agent id of the
// previous page (exclusive); agent ids are fixed-width hex, so lexicographic
// order equals numeric order.
type AgentFilter struct {
	Validated     *bool
	HasTerms      *bool
	CouncilID     string
	MinCollateral uint64
	Cursor        string
	Limit         int
}

// Agents lists agents in id order.
func (s *Store) Agents(ctx context.Context, f AgentFilter) ([]protocol.Agent, error) {
	query := `SELECT * FROM agents FINAL`
	conds, args := make([]string, 0, 5), make([]any, 0, 5)
	if f.Validated != nil {
		conds = append(conds, "validated = ?")
		args = append(args, boolArg(*f.Validated))
	}
	if f.HasTerms != nil {
		conds = append(conds, "has_active_terms = ?")
		args = append(args, boolArg(*f.HasTerms))
	}
	if f.CouncilID != "" {
		conds = append(conds, "active_council_id = ?")
		args = append(args, f.CouncilID)
	}
	if f.MinCollateral > 0 {
		conds = append(conds, "collateral_balance >= ?")
		args = append(args, f.MinCollateral)
	}
	if f.Cursor != "" {
		conds = append(conds, "id > ?")
		args = append(args, f.Cursor)
	}
	query += whereClause(conds) + ` ORDER BY id ASC` + limitClause(f.Limit, 0)

	var rows []models.Agent
	if err := s.Client.SelectWithFinal(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]protocol.Agent, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToProtocol())
	}
	return out, nil
}

// Claim returns the latest snapshot for one claim, or nil when unknown.
func (s *Store) Claim(ctx context.Context, id string) (*protocol.Claim, error) {
	var rows []models.Claim
	err := s.Client.SelectWithFinal(ctx, &rows, `SELECT * FROM claims FINAL WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	claim := rows[0].ToProtocol()
	return &claim, nil
}

// ClaimFilter narrows a claim listing. Zero values mean "no constraint".
// Claim ids are the chain's monotonically increasing counter, so id order is
// filing order and the numeric id doubles as the pagination cursor.
type ClaimFilter struct {
	Status    *protocol.ClaimStatus
	AgentID   string
	CouncilID string
	Claimant  string
	Cursor    uint64
	Ascending bool
	Limit     int
}

// Claims lists claims in filing order, newest-first by default.
func (s *Store) Claims(ctx context.Context, f ClaimFilter) ([]protocol.Claim, error) {
	query := `SELECT * FROM claims FINAL`
	conds, args := make([]string, 0, 5), make([]any, 0, 5)
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, uint8(*f.Status))
	}
	if f.AgentID != "" {
		conds = append(conds, "agent_id = ?")
		args = append(args, f.AgentID)
	}
	if f.CouncilID != "" {
		conds = append(conds, "council_id = ?")
		args = append(args, f.CouncilID)
	}
	if f.Claimant != "" {
		conds = append(conds, "claimant = ?")
		args = append(args, f.Claimant)
	}
	if f.Cursor > 0 {
		if f.Ascending {
			conds = append(conds, "toUInt64OrZero(id) > ?")
		} else {
			conds = append(conds, "toUInt64OrZero(id) < ?")
		}
		args = append(args, f.Cursor)
	}
	order := ` ORDER BY toUInt64OrZero(id) DESC`
	if f.Ascending {
		order = ` ORDER BY toUInt64OrZero(id) ASC`
	}
	query += whereClause(conds) + order + limitClause(f.Limit, 0)

	var rows []models.Claim
	if err := s.Client.SelectWithFinal(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]protocol.Claim, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToProtocol())
	}
	return out, nil
}

// VotesByClaim returns the live vote rows for one claim.
func (s *Store) VotesByClaim(ctx context.Context, claimID string) ([]protocol.Vote, error) {
	var rows []models.Vote
	err := s.Client.SelectWithFinal(ctx, &rows,
		`SELECT * FROM votes FINAL WHERE claim_id = ? ORDER BY cast_at ASC`, claimID)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Vote, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToProtocol())
	}
	return out, nil
}

// VotesByVoter returns a member's voting history, newest-first.
func (s *Store) VotesByVoter(ctx context.Context, voter string, limit, offset int) ([]protocol.Vote, error) {
	query := `SELECT * FROM votes FINAL WHERE voter = ? ORDER BY cast_at DESC` + limitClause(limit, offset)
	var rows []models.Vote
	if err := s.Client.SelectWithFinal(ctx, &rows, query, voter); err != nil {
		return nil, err
	}
	out := make([]protocol.Vote, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToProtocol())
	}
	return out, nil
}

// EvidenceByClaim returns a claim's evidence trail in submission order.
func (s *Store) EvidenceByClaim(ctx context.Context, claimID string) ([]protocol.Evidence, error) {
	var rows []models.Evidence
	err := s.Client.SelectWithFinal(ctx, &rows,
		`SELECT * FROM evidence FINAL WHERE claim_id = ? ORDER BY sequence ASC`, claimID)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Evidence, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToProtocol())
	}
	return out, nil
}

// Council returns the latest snapshot for one council, or nil when unknown.
func (s *Store) Council(ctx context.Context, id string) (*protocol.Council, error) {
	var rows []models.Council
	err := s.Client.SelectWithFinal(ctx, &rows, `SELECT * FROM councils FINAL WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	council := rows[0].ToProtocol()
	return &council, nil
}

// Councils lists councils, optionally restricted to open ones.
func (s *Store) Councils(ctx context.Context, activeOnly bool, limit, offset int) ([]protocol.Council, error) {
	query := `SELECT * FROM councils FINAL`
	if activeOnly {
		query += ` WHERE active = 1 AND closed = 0`
	}
	query += ` ORDER BY created_at ASC` + limitClause(limit, offset)

	var rows []models.Council
	if err := s.Client.SelectWithFinal(ctx, &rows, query); err != nil {
		return nil, err
	}
	out := make([]protocol.Council, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToProtocol())
	}
	return out, nil
}

// MembersByCouncil returns the roster including inactive members.
func (s *Store) MembersByCouncil(ctx context.Context, councilID string) ([]protocol.CouncilMember, error) {
	var rows []models.CouncilMember
	err := s.Client.SelectWithFinal(ctx, &rows,
		`SELECT * FROM council_members FINAL WHERE council_id = ? ORDER BY joined_at ASC`, councilID)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.CouncilMember, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToProtocol())
	}
	return out, nil
}

// Stats returns the protocol totals, zero-valued when the projection has
// never flushed.
func (s *Store) Stats(ctx context.Context) (protocol.ProtocolStats, error) {
	var rows []models.ProtocolStats
	err := s.Client.SelectWithFinal(ctx, &rows, `SELECT * FROM protocol_stats FINAL WHERE id = 1`)
	if err != nil {
		return protocol.ProtocolStats{}, err
	}
	if len(rows) == 0 {
		return protocol.ProtocolStats{}, nil
	}
	return rows[0].ToProtocol(), nil
}

// CountClaimsByStatus is used by the reconciliation sweep to cross-check the
// stats row against the claims table.
func (s *Store) CountClaimsByStatus(ctx context.Context) (map[protocol.ClaimStatus]uint64, error) {
	rows, err := s.Client.Query(ctx, `SELECT status, count() FROM claims FINAL GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[protocol.ClaimStatus]uint64)
	for rows.Next() {
		var status uint8
		var count uint64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[protocol.ClaimStatus(status)] = count
	}
	return counts, rows.Err()
}

// Hydrate loads every aggregate snapshot into the in-memory projection state.
// The indexer calls this once on startup so it can resume applying events at
// the checkpoint instead of replaying the whole log. Callers should discard
// one Drain afterwards; hydration marks everything dirty.
func (s *Store) Hydrate(ctx context.Context, mem *protocol.MemoryStore) error {
	var agents []models.Agent
	if err := s.Client.SelectWithFinal(ctx, &agents, `SELECT * FROM agents FINAL`); err != nil {
		return fmt.Errorf("hydrate agents: %w", err)
	}
	for i := range agents {
		mem.PutAgent(agents[i].ToProtocol())
	}

	var councils []models.Council
	if err := s.Client.SelectWithFinal(ctx, &councils, `SELECT * FROM councils FINAL`); err != nil {
		return fmt.Errorf("hydrate councils: %w", err)
	}
	for i := range councils {
		mem.PutCouncil(councils[i].ToProtocol())
	}

	var members []models.CouncilMember
	if err := s.Client.SelectWithFinal(ctx, &members, `SELECT * FROM council_members FINAL`); err != nil {
		return fmt.Errorf("hydrate members: %w", err)
	}
	for i := range members {
		mem.PutMember(members[i].ToProtocol())
	}

	var claims []models.Claim
	if err := s.Client.SelectWithFinal(ctx, &claims, `SELECT * FROM claims FINAL`); err != nil {
		return fmt.Errorf("hydrate claims: %w", err)
	}
	for i := range claims {
		mem.PutClaim(claims[i].ToProtocol())
	}

	var votes []models.Vote
	if err := s.Client.SelectWithFinal(ctx, &votes, `SELECT * FROM votes FINAL`); err != nil {
		return fmt.Errorf("hydrate votes: %w", err)
	}
	for i := range votes {
		mem.PutVote(votes[i].ToProtocol())
	}

	var evidence []models.Evidence
	if err := s.Client.SelectWithFinal(ctx, &evidence,
		`SELECT * FROM evidence FINAL ORDER BY claim_id, sequence ASC`); err != nil {
		return fmt.Errorf("hydrate evidence: %w", err)
	}
	for i := range evidence {
		mem.AppendEvidence(evidence[i].ToProtocol())
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		return fmt.Errorf("hydrate stats: %w", err)
	}
	mem.MutateStats(func(st *protocol.ProtocolStats) { *st = stats })

	return nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func limitClause(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	if offset > 0 {
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func boolArg(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
