package api

import (
	"net/http"

	"github.com/xaenox/tea-bot/internal/models"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		raw = string(models.PeriodWeek)
	}
	period, err := models.ParsePeriod(raw)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	res, err := s.stats.Compute(r.Context(), period)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
