package controller

import (
	"encoding/json"
	"net/http"

	"github.com/arbiter-protocol/arbiterx/app/query/types"
	"github.com/gorilla/mux"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")

	r.HandleFunc("/claims", c.ListClaims).Methods("GET")
	r.HandleFunc("/claims/{id}", c.GetClaim).Methods("GET")
	r.HandleFunc("/claims/{id}/votes", c.GetClaimVotes).Methods("GET")
	r.HandleFunc("/claims/{id}/evidence", c.GetClaimEvidence).Methods("GET")
	r.HandleFunc("/claims/{id}/distribution", c.GetClaimDistribution).Methods("GET")

	r.HandleFunc("/agents", c.ListAgents).Methods("GET")
	r.HandleFunc("/agents/{id}", c.GetAgent).Methods("GET")

	r.HandleFunc("/councils", c.ListCouncils).Methods("GET")
	r.HandleFunc("/councils/{id}", c.GetCouncil).Methods("GET")
	r.HandleFunc("/councils/{id}/members", c.GetCouncilMembers).Methods("GET")

	r.HandleFunc("/votes", c.ListVotes).Methods("GET")
	r.HandleFunc("/stats", c.GetStats).Methods("GET")

	r.HandleFunc("/ws", c.HandleWebSocket).Methods("GET")

	r.HandleFunc("/admin/login", c.HandleLogin).Methods("POST")
	r.Handle("/admin/reconcile", c.RequireAdmin(http.HandlerFunc(c.HandleReconcile))).Methods("POST")

	return r, nil
}

// WithCORS wraps a handler with permissive CORS headers.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON body with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
