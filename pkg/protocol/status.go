package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ClaimStatus is the lifecycle state of a claim. The numeric codes mirror the
// on-chain enum and are the only representation persisted to ClickHouse; the
// string labels are the only representation served over HTTP. This table must
// stay identical everywhere status is serialized.
type ClaimStatus uint8

const (
	StatusFiled          ClaimStatus = 0
	StatusEvidenceClosed ClaimStatus = 1
	StatusVotingClosed   ClaimStatus = 2
	StatusApproved       ClaimStatus = 3
	StatusRejected       ClaimStatus = 4
	StatusExecuted       ClaimStatus = 5
	StatusCancelled      ClaimStatus = 6
	StatusExpired        ClaimStatus = 7
)

var statusLabels = map[ClaimStatus]string{
	StatusFiled:          "filed",
	StatusEvidenceClosed: "evidence_closed",
	StatusVotingClosed:   "voting_closed",
	StatusApproved:       "approved",
	StatusRejected:       "rejected",
	StatusExecuted:       "executed",
	StatusCancelled:      "cancelled",
	StatusExpired:        "expired",
}

func (s ClaimStatus) String() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// IsTerminal reports whether no further transition is possible.
// Rejected claims still pass through the distribution step, but Executed,
// Cancelled and Expired accept no further events.
func (s ClaimStatus) IsTerminal() bool {
	switch s {
	case StatusExecuted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// IsResolved reports whether the claim has reached a voting resolution.
func (s ClaimStatus) IsResolved() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExecuted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

func (s ClaimStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ClaimStatus) UnmarshalJSON(data []byte) error {
	parsed, err := ParseClaimStatus(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseClaimStatus accepts either the canonical label or the numeric code.
func ParseClaimStatus(s string) (ClaimStatus, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for code, label := range statusLabels {
		if needle == label {
			return code, nil
		}
	}
	if n, err := strconv.ParseUint(needle, 10, 8); err == nil {
		code := ClaimStatus(n)
		if _, ok := statusLabels[code]; ok {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown claim status %q", s)
}

// VoteChoice is the outcome a council member selected on a claim.
// Wire values arrive as numbers (1,2,3) or label strings depending on the
// upstream; they are normalized into this type at the boundary and raw codes
// are never branched on past decoding.
type VoteChoice uint8

const (
	VoteNone    VoteChoice = 0
	VoteApprove VoteChoice = 1
	VoteReject  VoteChoice = 2
	VoteAbstain VoteChoice = 3
)

var voteLabels = map[VoteChoice]string{
	VoteNone:    "none",
	VoteApprove: "approve",
	VoteReject:  "reject",
	VoteAbstain: "abstain",
}

func (v VoteChoice) String() string {
	if label, ok := voteLabels[v]; ok {
		return label
	}
	return fmt.Sprintf("unknown(%d)", uint8(v))
}

func (v VoteChoice) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON normalizes the dual-shape wire encoding: either a JSON number
// (0..3) or a label string ("approve", "Reject", "2", ...).
func (v *VoteChoice) UnmarshalJSON(data []byte) error {
	parsed, err := ParseVoteChoice(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVoteChoice accepts numeric codes and label strings, case-insensitive.
func ParseVoteChoice(s string) (VoteChoice, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for code, label := range voteLabels {
		if needle == label {
			return code, nil
		}
	}
	if n, err := strconv.ParseUint(needle, 10, 8); err == nil {
		code := VoteChoice(n)
		if _, ok := voteLabels[code]; ok {
			return code, nil
		}
	}
	return VoteNone, fmt.Errorf("unknown vote choice %q", s)
}
