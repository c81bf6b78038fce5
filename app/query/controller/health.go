package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.App.Store.Client.Db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "database connection error"})
		return
	}

	body := map[string]string{"status": "ok"}
	if c.App.RedisClient != nil {
		if err := c.App.RedisClient.Health(ctx); err != nil {
			// Redis only powers live notifications, so a dead redis degrades
			// rather than fails the health check.
			body["status"] = "degraded"
			body["redis"] = "unreachable"
		}
	}
	writeJSON(w, http.StatusOK, body)
}
