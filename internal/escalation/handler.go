package escalation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bissquit/escalation-garden/internal/domain"
	"github.com/bissquit/escalation-garden/internal/pkg/httputil"
	"github.com/bissquit/escalation-garden/internal/rules"
)

// Evaluator matches an alert against the rule catalog.
type Evaluator interface {
	Evaluate(alert domain.Alert) []rules.Match
}

// Handler handles HTTP requests for the escalation module.
type Handler struct {
	engine    *Engine
	evaluator Evaluator
	validator *validator.Validate
}

// NewHandler creates a new escalation handler.
func NewHandler(engine *Engine, evaluator Evaluator) *Handler {
	return &Handler{
		engine:    engine,
		evaluator: evaluator,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the escalation module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/escalations", func(r chi.Router) {
		r.Get("/", h.ListEscalations)
		r.Post("/", h.StartEscalation)
		r.Get("/stats", h.GetStats)
		r.Get("/history", h.QueryHistory)
		r.Get("/{id}", h.GetEscalation)
		r.Post("/{id}/advance", h.AdvanceEscalation)
		r.Post("/{id}/stop", h.StopEscalation)
	})
}

// StartEscalationRequest represents the alert submitted to start an escalation.
type StartEscalationRequest struct {
	ID          string    `json:"id" validate:"required"`
	Severity    string    `json:"severity" validate:"required,oneof=critical warning info"`
	Status      string    `json:"status" validate:"required"`
	ServiceType string    `json:"service_type"`
	Component   string    `json:"component"`
	CreatedAt   time.Time `json:"created_at" validate:"required"`
}

// ToDomain converts the request to a domain alert.
func (r *StartEscalationRequest) ToDomain() domain.Alert {
	return domain.Alert{
		ID:          r.ID,
		Severity:    domain.Severity(r.Severity),
		Status:      r.Status,
		ServiceType: r.ServiceType,
		Component:   r.Component,
		CreatedAt:   r.CreatedAt,
	}
}

// StartEscalationResponse reports whether an escalation started and why not
// when it did not.
type StartEscalationResponse struct {
	Started    bool               `json:"started"`
	Reason     string             `json:"reason,omitempty"`
	Escalation *domain.Escalation `json:"escalation,omitempty"`
}

// AdvanceEscalationRequest optionally carries the latest alert state so
// termination predicates see status changes made outside this service.
type AdvanceEscalationRequest struct {
	Alert *StartEscalationRequest `json:"alert" validate:"omitempty"`
}

// StopEscalationRequest carries the operator-supplied stop reason.
type StopEscalationRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=255"`
}

var escalationErrorMappings = []httputil.ErrorMapping{
	{Error: ErrEscalationNotFound, Status: http.StatusNotFound},
}

// StartEscalation evaluates the alert against the rule catalog and starts an
// escalation for the matching rules. A disabled engine or an alert with no
// matching rules yields a structured not-started response, not an error.
func (h *Handler) StartEscalation(w http.ResponseWriter, r *http.Request) {
	var req StartEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	alert := req.ToDomain()
	matches := h.evaluator.Evaluate(alert)

	esc, err := h.engine.Start(r.Context(), alert, matches)
	switch {
	case err == nil:
		httputil.Success(w, http.StatusCreated, StartEscalationResponse{Started: true, Escalation: esc})
	case isNotStarted(err):
		httputil.Success(w, http.StatusOK, StartEscalationResponse{Started: false, Reason: err.Error()})
	default:
		httputil.HandleError(r.Context(), w, err, escalationErrorMappings)
	}
}

func isNotStarted(err error) bool {
	return errors.Is(err, ErrEscalationDisabled) || errors.Is(err, ErrNoMatchingRules)
}

// ListEscalations returns all known escalations, newest first.
func (h *Handler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, h.engine.List())
}

// GetEscalation returns a single escalation by id.
func (h *Handler) GetEscalation(w http.ResponseWriter, r *http.Request) {
	esc, err := h.engine.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, escalationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, esc)
}

// AdvanceEscalation runs one evaluation pass for the escalation. An optional
// alert body refreshes the alert snapshot first.
func (h *Handler) AdvanceEscalation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.Body != nil && r.ContentLength != 0 {
		var req AdvanceEscalationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Alert != nil {
			if err := h.validator.Struct(req.Alert); err != nil {
				httputil.ValidationError(w, err)
				return
			}
			if err := h.engine.SetAlert(id, req.Alert.ToDomain()); err != nil {
				httputil.HandleError(r.Context(), w, err, escalationErrorMappings)
				return
			}
		}
	}

	if err := h.engine.Advance(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, escalationErrorMappings)
		return
	}

	esc, err := h.engine.Get(id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, escalationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, esc)
}

// StopEscalation manually stops an active escalation.
func (h *Handler) StopEscalation(w http.ResponseWriter, r *http.Request) {
	var req StopEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if !h.engine.Stop(r.Context(), id, req.Reason) {
		if _, err := h.engine.Get(id); err != nil {
			httputil.HandleError(r.Context(), w, err, escalationErrorMappings)
			return
		}
		httputil.Error(w, http.StatusConflict, "escalation already finished")
		return
	}

	esc, err := h.engine.Get(id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, escalationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, esc)
}

// GetStats returns engine counters grouped by escalation status plus per-rule
// execution counts.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, h.engine.Stats())
}

// QueryHistory returns history entries filtered by the query parameters.
func (h *Handler) QueryHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := HistoryFilter{
		AlertID:      q.Get("alert_id"),
		EscalationID: q.Get("escalation_id"),
		Action:       domain.HistoryAction(q.Get("action")),
	}

	if raw := q.Get("date_from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid date_from, want RFC 3339")
			return
		}
		filter.DateFrom = &t
	}
	if raw := q.Get("date_to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid date_to, want RFC 3339")
			return
		}
		filter.DateTo = &t
	}

	entries, err := h.engine.History().Query(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, escalationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, entries)
}
