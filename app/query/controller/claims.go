package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/arbiter-protocol/arbiterx/pkg/db"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// pageResponse is the standard listing envelope: limit+1 look-ahead decides
// whether a next_cursor is offered.
type pageResponse[T any] struct {
	Results    []T     `json:"results"`
	NextCursor *uint64 `json:"next_cursor,omitempty"`
	Degraded   bool    `json:"degraded,omitempty"`
	Warning    string  `json:"warning,omitempty"`
}

// ListClaims serves GET /claims with agent/claimant/council/status filters
// and cursor pagination over the numeric claim id.
func (c *Controller) ListClaims(w http.ResponseWriter, r *http.Request) {
	spec, err := parsePageSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := db.ClaimFilter{
		AgentID:   r.URL.Query().Get("agent"),
		CouncilID: r.URL.Query().Get("council"),
		Claimant:  r.URL.Query().Get("claimant"),
		Cursor:    spec.Cursor,
		Ascending: spec.Sort == SortOrderAsc,
		Limit:     spec.Limit + 1,
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status, perr := protocol.ParseClaimStatus(v)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = &status
	}

	res, err := c.App.Source.Claims(r.Context(), filter)
	if err != nil {
		c.App.Logger.Error("List claims failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	page := pageResponse[protocol.Claim]{
		Results:  res.Data,
		Degraded: res.Degraded,
		Warning:  res.Warning,
	}
	if len(page.Results) > spec.Limit {
		page.Results = page.Results[:spec.Limit]
		if next, perr := strconv.ParseUint(page.Results[len(page.Results)-1].ID, 10, 64); perr == nil {
			page.NextCursor = &next
		}
	}
	if page.Results == nil {
		page.Results = []protocol.Claim{}
	}
	writeJSON(w, http.StatusOK, page)
}

// GetClaim serves GET /claims/{id}.
func (c *Controller) GetClaim(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	res, err := c.App.Source.Claim(r.Context(), id)
	if err != nil {
		c.App.Logger.Error("Get claim failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if res.Data == nil {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetClaimVotes serves GET /claims/{id}/votes.
func (c *Controller) GetClaimVotes(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	res, err := c.App.Source.VotesByClaim(r.Context(), id)
	if err != nil {
		c.App.Logger.Error("Get claim votes failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if res.Data == nil {
		res.Data = []protocol.Vote{}
	}
	writeJSON(w, http.StatusOK, res)
}

// GetClaimEvidence serves GET /claims/{id}/evidence.
func (c *Controller) GetClaimEvidence(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	res, err := c.App.Source.EvidenceByClaim(r.Context(), id)
	if err != nil {
		c.App.Logger.Error("Get claim evidence failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if res.Data == nil {
		res.Data = []protocol.Evidence{}
	}
	writeJSON(w, http.StatusOK, res)
}

// GetClaimDistribution serves GET /claims/{id}/distribution: the exact payout
// split for a finalized claim, 409 while the claim is still live.
func (c *Controller) GetClaimDistribution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	res, err := c.App.Source.Claim(r.Context(), id)
	if err != nil {
		c.App.Logger.Error("Get claim failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if res.Data == nil {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}

	dist, err := protocol.Calculate(*res.Data)
	if err != nil {
		if errors.Is(err, protocol.ErrNotResolved) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "distribution failed")
		return
	}
	writeJSON(w, http.StatusOK, dist)
}
