package rpc

// RPC endpoint paths for Arbiter chain-node queries. All paths live here so a
// node API revision only touches one file.

const (
	// Chain progress
	headPath = "/v1/query/head"

	// Event log queries
	eventsByRangePath = "/v1/query/events-by-range"

	// Scoped entity queries
	agentPath         = "/v1/query/agent"
	claimPath         = "/v1/query/claim"
	claimsByAgentPath = "/v1/query/claims-by-agent"
	councilPath       = "/v1/query/council"
	membersPath       = "/v1/query/council-members"
	votesByClaimPath  = "/v1/query/votes-by-claim"
	statsPath         = "/v1/query/protocol-stats"
)
