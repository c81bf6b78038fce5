package controller

import (
	"net/http"
	"strconv"

	"github.com/arbiter-protocol/arbiterx/pkg/datasource"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"go.uber.org/zap"
)

// ListVotes serves GET /votes. The listing must be anchored to a claim or a
// voter; an unanchored scan over the whole vote table is never offered.
func (c *Controller) ListVotes(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	claimID := qs.Get("claim")
	voter := qs.Get("voter")
	council := qs.Get("council")

	if claimID == "" && voter == "" {
		writeError(w, http.StatusBadRequest, "claim or voter parameter is required")
		return
	}

	limit := defaultLimit
	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errInvalidLimit.Error())
			return
		}
		limit = n
		if limit > maxLimit {
			limit = maxLimit
		}
	}
	offset := 0
	if v := qs.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	var (
		res datasource.Result[[]protocol.Vote]
		err error
	)
	if claimID != "" {
		res, err = c.App.Source.VotesByClaim(r.Context(), claimID)
	} else {
		res, err = c.App.Source.VotesByVoter(r.Context(), voter, limit, offset)
	}
	if err != nil {
		c.App.Logger.Error("List votes failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	votes := res.Data
	if voter != "" && claimID != "" {
		votes = filterVotes(votes, func(v protocol.Vote) bool { return v.Voter == voter })
	}
	if council != "" {
		votes = filterVotes(votes, func(v protocol.Vote) bool { return v.CouncilID == council })
	}
	if votes == nil {
		votes = []protocol.Vote{}
	}

	res.Data = votes
	writeJSON(w, http.StatusOK, res)
}

func filterVotes(votes []protocol.Vote, keep func(protocol.Vote) bool) []protocol.Vote {
	out := votes[:0:0]
	for _, v := range votes {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
