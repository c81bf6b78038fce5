package rpc

// QueryByRangeRequest asks for the event log slice [FromBlock, ToBlock].
type QueryByRangeRequest struct {
	FromBlock uint64 `json:"fromBlock"`
	ToBlock   uint64 `json:"toBlock"`
}

// QueryByIDRequest addresses a single aggregate by its numeric identifier.
type QueryByIDRequest struct {
	ID uint64 `json:"id"`
}

// QueryByKeyRequest addresses a single aggregate by its string key, e.g. a
// council or claim identifier.
type QueryByKeyRequest struct {
	Key string `json:"key"`
}

// HeadResponse is the node's current chain tip.
type HeadResponse struct {
	Block uint64 `json:"block"`
	Time  int64  `json:"time"`
}
