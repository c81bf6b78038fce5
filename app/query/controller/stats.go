package controller

import (
	"net/http"

	"go.uber.org/zap"
)

// GetStats serves GET /stats: the singleton protocol totals row.
func (c *Controller) GetStats(w http.ResponseWriter, r *http.Request) {
	res, err := c.App.Source.Stats(r.Context())
	if err != nil {
		c.App.Logger.Error("Get stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
