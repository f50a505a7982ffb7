package api

import (
	"net/http"

	"github.com/shaiso/Engage/internal/scheduler"
)

// EngineStatus возвращает состояние планировщика.
// GET /api/v1/engine/status
func (h *Handler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	Success(w, h.engineStatus())
}

// StartEngine запускает планировщик. Повторный запуск ничего не делает.
// POST /api/v1/engine/start
func (h *Handler) StartEngine(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Start(h.baseCtx); err != nil {
		HandleError(w, h.logger, err, "")
		return
	}
	h.logger.Info("scheduler started via api")
	Success(w, h.engineStatus())
}

// StopEngine останавливает планировщик. Идущие задачи доработают.
// POST /api/v1/engine/stop
func (h *Handler) StopEngine(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	h.logger.Info("scheduler stopped via api")
	Success(w, h.engineStatus())
}

// UpdateEngineConfig меняет настройки и перезапускает триггеры.
// PUT /api/v1/engine/config
func (h *Handler) UpdateEngineConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := decodeAndValidate(r, &req, false); err != nil {
		BadRequest(w, err.Error())
		return
	}

	patch, err := req.ToPatch()
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if patch.IsEmpty() {
		BadRequest(w, "nothing to update")
		return
	}

	settings, err := h.engine.UpdateConfig(patch)
	if HandleError(w, h.logger, err, "") {
		return
	}
	Success(w, SettingsFromScheduler(settings))
}

// RunJob синхронно выполняет задачу и возвращает отчёт.
// Ошибки самой задачи попадают в отчёт, ответ всё равно 200.
// POST /api/v1/engine/run/{job}
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	job, err := scheduler.ParseJob(r.PathValue("job"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	report, err := h.engine.Trigger(r.Context(), job)
	if HandleError(w, h.logger, err, "") {
		return
	}
	Success(w, report)
}

func (h *Handler) engineStatus() EngineStatusResponse {
	return EngineStatusResponse{
		Status:   h.engine.Status(),
		Settings: SettingsFromScheduler(h.engine.Settings()),
	}
}
