package server

import (
	"net/http"
	"os"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/signalboard/signalboard/internal/logging"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "error": err.Error()})
		return
	}

	health := map[string]any{
		"status": "ok",
		"stats":  stats,
		"errors": logging.ErrorCounts(),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			health["rss_bytes"] = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			health["cpu_percent"] = cpu
		}
	}
	writeJSON(w, http.StatusOK, health)
}
