package controller

import (
	"net/http"
	"strconv"

	"github.com/arbiter-protocol/arbiterx/pkg/db"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/arbiter-protocol/arbiterx/pkg/utils"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// agentPage paginates by agent id string since agent ids are fixed-width hex.
type agentPage struct {
	Results    []protocol.Agent `json:"results"`
	NextCursor string           `json:"next_cursor,omitempty"`
	Degraded   bool             `json:"degraded,omitempty"`
	Warning    string           `json:"warning,omitempty"`
}

// ListAgents serves GET /agents with validated/has_terms/min_collateral filters.
func (c *Controller) ListAgents(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

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

	validated, err := parseBoolParam(r, "validated")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hasTerms, err := parseBoolParam(r, "has_terms")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := db.AgentFilter{
		Validated:     validated,
		HasTerms:      hasTerms,
		CouncilID:     qs.Get("council"),
		MinCollateral: parseUintParam(qs.Get("min_collateral")),
		Cursor:        qs.Get("cursor"),
		Limit:         limit + 1,
	}

	res, err := c.App.Source.Agents(r.Context(), filter)
	if err != nil {
		c.App.Logger.Error("List agents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	page := agentPage{
		Results:  res.Data,
		Degraded: res.Degraded,
		Warning:  res.Warning,
	}
	if len(page.Results) > limit {
		page.Results = page.Results[:limit]
		page.NextCursor = page.Results[len(page.Results)-1].ID
	}
	if page.Results == nil {
		page.Results = []protocol.Agent{}
	}
	writeJSON(w, http.StatusOK, page)
}

// GetAgent serves GET /agents/{id}. Accepts both the canonical hex key and a
// bare numeric token id.
func (c *Controller) GetAgent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if numeric, err := strconv.ParseUint(id, 10, 64); err == nil {
		id = utils.AgentKey(numeric)
	}

	res, err := c.App.Source.Agent(r.Context(), id)
	if err != nil {
		c.App.Logger.Error("Get agent failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if res.Data == nil {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseUintParam(v string) uint64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
