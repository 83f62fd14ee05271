package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/escalation-garden/internal/pkg/clock"
)

func setupHandler(t *testing.T) (*Catalog, *chi.Mux) {
	t.Helper()
	catalog := NewCatalog(clock.NewFake(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)), nil)
	router := chi.NewRouter()
	NewHandler(catalog).RegisterRoutes(router)
	return catalog, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createRuleBody(id string) map[string]any {
	return map[string]any{
		"id":       id,
		"name":     "Rule " + id,
		"priority": 1,
		"conditions": map[string]any{
			"severity": []string{"critical"},
		},
		"actions": []map[string]any{
			{"delay_minutes": 5, "channels": []string{"slack"}, "escalation_level": 1},
		},
	}
}

func TestHandler_CreateRule(t *testing.T) {
	_, router := setupHandler(t)

	rec := doJSON(t, router, http.MethodPost, "/rules/", createRuleBody("r1"))
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate id conflicts
	rec = doJSON(t, router, http.MethodPost, "/rules/", createRuleBody("r1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_CreateRule_Invalid(t *testing.T) {
	_, router := setupHandler(t)

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing id", func(b map[string]any) { delete(b, "id") }},
		{"missing name", func(b map[string]any) { delete(b, "name") }},
		{"no actions", func(b map[string]any) { delete(b, "actions") }},
		{"zero delay", func(b map[string]any) {
			b["actions"] = []map[string]any{{"delay_minutes": 0, "channels": []string{"slack"}}}
		}},
		{"no conditions", func(b map[string]any) { delete(b, "conditions") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := createRuleBody("r-invalid")
			tt.mutate(body)
			rec := doJSON(t, router, http.MethodPost, "/rules/", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_GetRule(t *testing.T) {
	_, router := setupHandler(t)

	rec := doJSON(t, router, http.MethodPost, "/rules/", createRuleBody("r1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/rules/r1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/rules/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_UpdateRule(t *testing.T) {
	_, router := setupHandler(t)

	rec := doJSON(t, router, http.MethodPost, "/rules/", createRuleBody("r1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/rules/r1", map[string]any{"name": "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Name     string `json:"name"`
			Priority int    `json:"priority"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Renamed", resp.Data.Name)
	assert.Equal(t, 1, resp.Data.Priority)

	rec = doJSON(t, router, http.MethodPatch, "/rules/missing", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_DeleteRule(t *testing.T) {
	_, router := setupHandler(t)

	rec := doJSON(t, router, http.MethodPost, "/rules/", createRuleBody("r1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/rules/r1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/rules/r1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ListRules(t *testing.T) {
	catalog, router := setupHandler(t)

	for i := 0; i < 3; i++ {
		_, err := catalog.Add(context.Background(), validRule(fmt.Sprintf("r%d", i)))
		require.NoError(t, err)
	}

	rec := doJSON(t, router, http.MethodGet, "/rules/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 3)
}

func TestHandler_EvaluateAlert(t *testing.T) {
	_, router := setupHandler(t)

	rec := doJSON(t, router, http.MethodPost, "/rules/", createRuleBody("r1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/alerts/evaluate", map[string]any{
		"id":         "alert-1",
		"severity":   "critical",
		"status":     "open",
		"created_at": time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			Rule struct {
				ID string `json:"id"`
			} `json:"rule"`
			Score int `json:"score"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "r1", resp.Data[0].Rule.ID)
	assert.Equal(t, 55, resp.Data[0].Score)
}

func TestHandler_EvaluateAlert_RejectsBadSeverity(t *testing.T) {
	_, router := setupHandler(t)

	rec := doJSON(t, router, http.MethodPost, "/alerts/evaluate", map[string]any{
		"id":         "alert-1",
		"severity":   "fatal",
		"status":     "open",
		"created_at": time.Now(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
