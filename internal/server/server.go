// Package server exposes the HTTP API: ingestion, dashboard reads, digests,
// and the admin/mock maintenance routes.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/signalboard/signalboard/internal/digest"
	"github.com/signalboard/signalboard/internal/reconcile"
	"github.com/signalboard/signalboard/internal/store"
	"github.com/signalboard/signalboard/internal/worker"
)

// Server wires the HTTP routes to the pipeline components.
type Server struct {
	store    *store.Store
	pool     *worker.Pool
	jobs     *reconcile.Jobs
	synth    *digest.Synthesizer
	freePlan bool
}

// New builds a server.
func New(st *store.Store, pool *worker.Pool, jobs *reconcile.Jobs, synth *digest.Synthesizer, freePlan bool) *Server {
	return &Server{store: st, pool: pool, jobs: jobs, synth: synth, freePlan: freePlan}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/dashboard/overview", s.handleOverview)
	mux.HandleFunc("GET /api/dashboard/cluster/{id}", s.handleCluster)

	mux.HandleFunc("GET /api/digests", s.handleDigests)
	mux.HandleFunc("POST /api/digests/run", s.handleDigestRun)
	mux.HandleFunc("POST /api/digests/mock", s.handleDigestMock)

	mux.HandleFunc("POST /api/admin/refresh-clusters", s.handleRefresh)
	mux.HandleFunc("POST /api/admin/merge-clusters", s.handleMerge)
	mux.HandleFunc("POST /api/admin/recount-clusters", s.handleRecount)

	mux.HandleFunc("POST /api/mock/seed", s.handleSeed)
	mux.HandleFunc("POST /api/mock/generate", s.handleGenerate)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
