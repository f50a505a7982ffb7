package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// CreateEnrollment записывает контакт в последовательность.
// POST /api/v1/enrollments
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrollmentRequest
	if err := decodeAndValidate(r, &req, false); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if !req.HasTarget() {
		BadRequest(w, "one of lead_id, customer_id or contact is required")
		return
	}

	e, err := h.enrollments.Enroll(r.Context(), req.ToDomain())
	if HandleError(w, h.logger, err, "sequence not found") {
		return
	}

	Created(w, EnrollmentFromDomain(e, true))
}

// GetEnrollment возвращает enrollment с историей.
// GET /api/v1/enrollments/{id}
func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.enrollmentID(w, r)
	if !ok {
		return
	}

	e, err := h.enrollments.Get(r.Context(), id)
	if HandleError(w, h.logger, err, "enrollment not found") {
		return
	}

	Success(w, EnrollmentFromDomain(e, true))
}

// ListSequenceEnrollments возвращает enrollments последовательности.
// GET /api/v1/sequences/{id}/enrollments?limit=...
func (h *Handler) ListSequenceEnrollments(w http.ResponseWriter, r *http.Request) {
	sequenceID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid sequence id")
		return
	}

	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	list, err := h.enrollments.List(r.Context(), sequenceID, limit)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]EnrollmentResponse, len(list))
	for i := range list {
		result[i] = EnrollmentFromDomain(&list[i], false)
	}

	List(w, result, len(result))
}

// PauseEnrollment приостанавливает enrollment.
// POST /api/v1/enrollments/{id}/pause
func (h *Handler) PauseEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.enrollmentID(w, r)
	if !ok {
		return
	}

	var req PauseEnrollmentRequest
	if err := decodeAndValidate(r, &req, true); err != nil {
		BadRequest(w, err.Error())
		return
	}

	e, err := h.enrollments.Pause(r.Context(), id, req.Reason)
	h.respondTransition(w, e, err)
}

// ResumeEnrollment возобновляет enrollment.
// POST /api/v1/enrollments/{id}/resume
func (h *Handler) ResumeEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.enrollmentID(w, r)
	if !ok {
		return
	}

	e, err := h.enrollments.Resume(r.Context(), id)
	h.respondTransition(w, e, err)
}

// CancelEnrollment отменяет enrollment.
// POST /api/v1/enrollments/{id}/cancel
func (h *Handler) CancelEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.enrollmentID(w, r)
	if !ok {
		return
	}

	e, err := h.enrollments.Cancel(r.Context(), id)
	h.respondTransition(w, e, err)
}

func (h *Handler) respondTransition(w http.ResponseWriter, e *domain.Enrollment, err error) {
	if HandleError(w, h.logger, err, "enrollment not found") {
		return
	}
	Success(w, EnrollmentFromDomain(e, false))
}

func (h *Handler) enrollmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid enrollment id")
		return uuid.Nil, false
	}
	return id, true
}
