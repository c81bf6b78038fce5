package controller

import (
	"net/http"
	"strconv"

	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// memberView decorates a member row with its computed win-rate so clients
// never have to reimplement the percentage math.
type memberView struct {
	protocol.CouncilMember
	WinRatePct uint32 `json:"win_rate_pct"`
}

// ListCouncils serves GET /councils. Offset pagination is fine here, council
// counts stay small.
func (c *Controller) ListCouncils(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	activeOnly := false
	if v := qs.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid active, must be true or false")
			return
		}
		activeOnly = b
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

	res, err := c.App.Source.Councils(r.Context(), activeOnly, limit, offset)
	if err != nil {
		c.App.Logger.Error("List councils failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if res.Data == nil {
		res.Data = []protocol.Council{}
	}
	writeJSON(w, http.StatusOK, res)
}

// GetCouncil serves GET /councils/{id}.
func (c *Controller) GetCouncil(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	res, err := c.App.Source.Council(r.Context(), id)
	if err != nil {
		c.App.Logger.Error("Get council failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if res.Data == nil {
		writeError(w, http.StatusNotFound, "council not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetCouncilMembers serves GET /councils/{id}/members with an optional
// active=true|false filter. Every row carries its win-rate.
func (c *Controller) GetCouncilMembers(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	active, err := parseBoolParam(r, "active")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := c.App.Source.MembersByCouncil(r.Context(), id)
	if err != nil {
		c.App.Logger.Error("Get council members failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	members := make([]memberView, 0, len(res.Data))
	for _, m := range res.Data {
		if active != nil && m.Active != *active {
			continue
		}
		members = append(members, memberView{
			CouncilMember: m,
			WinRatePct:    protocol.WinRate(m.CorrectVotes, m.FinalizedVotes),
		})
	}

	writeJSON(w, http.StatusOK, struct {
		Results  []memberView `json:"results"`
		Degraded bool         `json:"degraded,omitempty"`
		Warning  string       `json:"warning,omitempty"`
	}{Results: members, Degraded: res.Degraded, Warning: res.Warning})
}
