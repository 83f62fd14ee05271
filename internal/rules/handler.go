package rules

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bissquit/escalation-garden/internal/domain"
	"github.com/bissquit/escalation-garden/internal/pkg/httputil"
)

// Handler handles HTTP requests for the rules module.
type Handler struct {
	catalog   *Catalog
	validator *validator.Validate
}

// NewHandler creates a new rules handler.
func NewHandler(catalog *Catalog) *Handler {
	return &Handler{
		catalog:   catalog,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the rules module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.ListRules)
		r.Post("/", h.CreateRule)
		r.Get("/{id}", h.GetRule)
		r.Patch("/{id}", h.UpdateRule)
		r.Delete("/{id}", h.DeleteRule)
	})
	r.Post("/alerts/evaluate", h.EvaluateAlert)
}

// ActionRequest represents one action in a rule request body.
type ActionRequest struct {
	DelayMinutes        int      `json:"delay_minutes" validate:"required,min=1"`
	Channels            []string `json:"channels" validate:"required,min=1,dive,required"`
	EscalationLevel     int      `json:"escalation_level" validate:"min=0"`
	NotifyManagers      bool     `json:"notify_managers"`
	NotifyExecutives    bool     `json:"notify_executives"`
	NotifyOncall        bool     `json:"notify_oncall"`
	CreateIncident      bool     `json:"create_incident"`
	CreateMajorIncident bool     `json:"create_major_incident"`
}

func (r ActionRequest) toDomain() domain.Action {
	return domain.Action{
		DelayMinutes:        r.DelayMinutes,
		Channels:            r.Channels,
		EscalationLevel:     r.EscalationLevel,
		NotifyManagers:      r.NotifyManagers,
		NotifyExecutives:    r.NotifyExecutives,
		NotifyOncall:        r.NotifyOncall,
		CreateIncident:      r.CreateIncident,
		CreateMajorIncident: r.CreateMajorIncident,
	}
}

// TerminationRequest represents one termination predicate in a rule request.
type TerminationRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// CreateRuleRequest represents the request body for creating a rule.
type CreateRuleRequest struct {
	ID                    string               `json:"id" validate:"required,min=1,max=255"`
	Name                  string               `json:"name" validate:"required,min=1,max=255"`
	Description           string               `json:"description"`
	Enabled               *bool                `json:"enabled"`
	Priority              int                  `json:"priority" validate:"omitempty,min=1"`
	Conditions            domain.Conditions    `json:"conditions"`
	Actions               []ActionRequest      `json:"actions" validate:"required,min=1,dive"`
	WorkingHours          *domain.WorkingHours `json:"working_hours"`
	TerminationConditions []TerminationRequest `json:"termination_conditions" validate:"omitempty,dive"`
	MaxEscalations        *int                 `json:"max_escalations" validate:"omitempty,min=1"`
}

// ToDomain converts the request to a domain rule.
func (r *CreateRuleRequest) ToDomain() domain.Rule {
	rule := domain.Rule{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Enabled:        true,
		Priority:       r.Priority,
		Conditions:     r.Conditions,
		WorkingHours:   r.WorkingHours,
		MaxEscalations: r.MaxEscalations,
	}
	if r.Enabled != nil {
		rule.Enabled = *r.Enabled
	}
	for _, a := range r.Actions {
		rule.Actions = append(rule.Actions, a.toDomain())
	}
	for _, tc := range r.TerminationConditions {
		rule.TerminationConditions = append(rule.TerminationConditions, domain.TerminationCondition{
			Field: tc.Field,
			Value: tc.Value,
		})
	}
	return rule
}

// UpdateRuleRequest represents the request body for updating a rule.
// Absent fields leave the stored value untouched.
type UpdateRuleRequest struct {
	Name                  *string              `json:"name" validate:"omitempty,min=1,max=255"`
	Description           *string              `json:"description"`
	Enabled               *bool                `json:"enabled"`
	Priority              *int                 `json:"priority" validate:"omitempty,min=1"`
	Conditions            *domain.Conditions   `json:"conditions"`
	Actions               []ActionRequest      `json:"actions" validate:"omitempty,min=1,dive"`
	WorkingHours          *domain.WorkingHours `json:"working_hours"`
	TerminationConditions []TerminationRequest `json:"termination_conditions" validate:"omitempty,dive"`
	MaxEscalations        *int                 `json:"max_escalations" validate:"omitempty,min=1"`
}

// AlertRequest represents an alert submitted for evaluation.
type AlertRequest struct {
	ID          string    `json:"id" validate:"required"`
	Severity    string    `json:"severity" validate:"required,oneof=critical warning info"`
	Status      string    `json:"status" validate:"required"`
	ServiceType string    `json:"service_type"`
	Component   string    `json:"component"`
	CreatedAt   time.Time `json:"created_at" validate:"required"`
}

// ToDomain converts the request to a domain alert.
func (r *AlertRequest) ToDomain() domain.Alert {
	return domain.Alert{
		ID:          r.ID,
		Severity:    domain.Severity(r.Severity),
		Status:      r.Status,
		ServiceType: r.ServiceType,
		Component:   r.Component,
		CreatedAt:   r.CreatedAt,
	}
}

var ruleErrorMappings = []httputil.ErrorMapping{
	{Error: ErrRuleNotFound, Status: http.StatusNotFound},
	{Error: ErrRuleExists, Status: http.StatusConflict},
}

// ListRules returns all rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, h.catalog.List())
}

// GetRule returns a single rule by id.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ruleErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, rule)
}

// CreateRule validates and stores a new rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	rule, err := h.catalog.Add(r.Context(), req.ToDomain())
	if err != nil {
		if IsValidationError(err) {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.HandleError(r.Context(), w, err, ruleErrorMappings)
		return
	}
	httputil.Success(w, http.StatusCreated, rule)
}

// UpdateRule merges updates onto an existing rule.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	upd := RuleUpdate{
		Name:           req.Name,
		Description:    req.Description,
		Enabled:        req.Enabled,
		Priority:       req.Priority,
		Conditions:     req.Conditions,
		WorkingHours:   req.WorkingHours,
		MaxEscalations: req.MaxEscalations,
	}
	for _, a := range req.Actions {
		upd.Actions = append(upd.Actions, a.toDomain())
	}
	for _, tc := range req.TerminationConditions {
		upd.TerminationConditions = append(upd.TerminationConditions, domain.TerminationCondition{
			Field: tc.Field,
			Value: tc.Value,
		})
	}

	rule, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		if IsValidationError(err) {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.HandleError(r.Context(), w, err, ruleErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, rule)
}

// DeleteRule removes a rule by id.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ruleErrorMappings)
		return
	}
	if !deleted {
		httputil.Error(w, http.StatusNotFound, ErrRuleNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EvaluateAlert returns the ranked rule matches for an alert.
func (h *Handler) EvaluateAlert(w http.ResponseWriter, r *http.Request) {
	var req AlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, h.catalog.Evaluate(req.ToDomain()))
}
