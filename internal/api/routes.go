package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		CronSecret(h.cronSecret),
	)

	// Engine
	mux.Handle("GET /api/v1/engine/status", chain(http.HandlerFunc(h.EngineStatus)))
	mux.Handle("POST /api/v1/engine/start", chain(http.HandlerFunc(h.StartEngine)))
	mux.Handle("POST /api/v1/engine/stop", chain(http.HandlerFunc(h.StopEngine)))
	mux.Handle("PUT /api/v1/engine/config", chain(http.HandlerFunc(h.UpdateEngineConfig)))
	mux.Handle("POST /api/v1/engine/run/{job}", chain(http.HandlerFunc(h.RunJob)))

	// Reminders
	mux.Handle("GET /api/v1/reminders/stats", chain(http.HandlerFunc(h.ReminderStats)))

	// Enrollments
	mux.Handle("POST /api/v1/enrollments", chain(http.HandlerFunc(h.CreateEnrollment)))
	mux.Handle("GET /api/v1/enrollments/{id}", chain(http.HandlerFunc(h.GetEnrollment)))
	mux.Handle("POST /api/v1/enrollments/{id}/pause", chain(http.HandlerFunc(h.PauseEnrollment)))
	mux.Handle("POST /api/v1/enrollments/{id}/resume", chain(http.HandlerFunc(h.ResumeEnrollment)))
	mux.Handle("POST /api/v1/enrollments/{id}/cancel", chain(http.HandlerFunc(h.CancelEnrollment)))
	mux.Handle("GET /api/v1/sequences/{id}/enrollments", chain(http.HandlerFunc(h.ListSequenceEnrollments)))
}
