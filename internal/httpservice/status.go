package httpservice

import (
	"net/http"

	"bwgen/internal/core/safe"
)

func (s *HTTPService) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	info := s.health.GetHealthInfo(r.Context())
	status := http.StatusOK
	if !info.Serving() {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, info)
}

// handleStats 返回指标快照及进程级会话 Goroutine 计数
func (s *HTTPService) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := map[string]float64{}
	if s.metrics != nil {
		snap = s.metrics.Snapshot()
	}
	gs := safe.GetStats()
	snap["goroutines_active"] = float64(gs.Active)
	snap["goroutine_panics_total"] = float64(gs.PanicCount)
	respondJSON(w, http.StatusOK, snap)
}
