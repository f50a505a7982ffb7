package api

import (
	"net/http"

	"github.com/shaiso/Engage/internal/domain"
)

// ReminderStats возвращает число отправленных напоминаний по видам
// за последние 7 дней.
// GET /api/v1/reminders/stats
func (h *Handler) ReminderStats(w http.ResponseWriter, r *http.Request) {
	since := h.now().Add(-statsWindow)

	stats, err := h.reminders.Stats(r.Context(), since)
	if HandleError(w, h.logger, err, "") {
		return
	}
	if stats == nil {
		stats = []domain.ReminderStat{}
	}

	total := 0
	for _, st := range stats {
		total += st.Count
	}

	Success(w, ReminderStatsResponse{Since: since, Total: total, Stats: stats})
}
