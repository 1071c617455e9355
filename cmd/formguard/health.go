package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"formguard/middleware/ratelimit/infra"
)

type healthResponse struct {
	Status     string                     `json:"status"`
	WindowKeys int                        `json:"windowKeys"`
	Decisions  healthDecisions            `json:"decisions"`
	Endpoints  map[string]healthDecisions `json:"endpoints"`
	// TrackedClients só conta com RATE_STATS_TRACK_KEYS=true.
	TrackedClients int `json:"trackedClients"`
}

type healthDecisions struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// healthHandler responde 503 quando a store de janelas não responde.
func healthHandler(windowKeys func(context.Context) (int, error), decisions *infra.MemoryStatsStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK

		n, err := windowKeys(ctx)
		if err != nil {
			logger.Warn("health check: window store unavailable", "error", err)
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
		resp.WindowKeys = n

		total := decisions.Total()
		resp.Decisions = healthDecisions{Allowed: total.Allowed, Denied: total.Denied}
		resp.Endpoints = make(map[string]healthDecisions)
		for endpoint, c := range decisions.ByEndpoint() {
			resp.Endpoints[string(endpoint)] = healthDecisions{Allowed: c.Allowed, Denied: c.Denied}
		}
		resp.TrackedClients = decisions.TrackedKeys()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
