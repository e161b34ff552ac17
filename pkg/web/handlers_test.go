package web_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flowList struct {
	Flows       []*models.Flow `json:"flows"`
	TotalCount  int64          `json:"total_count"`
	HasNextPage bool           `json:"has_next_page"`
}

func TestAPIHandlers_CreateFlow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: map[string]any{
				"name":        "Qualificação",
				"department":  "locação",
				"template_id": "qualificacao-locacao",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "name too short",
			requestBody:    map[string]any{"name": "ab", "department": "vendas"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing department",
			requestBody:    map[string]any{"name": "Fluxo"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown department",
			requestBody:    map[string]any{"name": "Fluxo", "department": "rh"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown template",
			requestBody:    map[string]any{"name": "Fluxo", "department": "vendas", "template_id": "nope"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)

			status, body := app.doJSON(t, http.MethodPost, "/flows/", tt.requestBody)
			require.Equal(t, tt.expectedStatus, status, string(body))

			if status == http.StatusCreated {
				created := decode[models.Flow](t, body)
				assert.NotEmpty(t, created.ID)
				assert.Equal(t, models.DepartmentLocacao, created.Department)
				assert.False(t, created.IsActive)
				assert.NotEmpty(t, created.Nodes)
			}
		})
	}
}

func TestAPIHandlers_CreateFlowInvalidJSON(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, _ := app.do(t, http.MethodPost, "/flows/", "application/json", strings.NewReader("{invalid"))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_FlowLifecycle(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := app.doJSON(t, http.MethodPost, "/flows/", map[string]any{
		"name":        "Qualificação",
		"department":  "locacao",
		"template_id": "qualificacao-locacao",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	created := decode[models.Flow](t, body)

	status, body = app.doJSON(t, http.MethodGet, "/flows/?department=locacao", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	list := decode[flowList](t, body)
	require.Len(t, list.Flows, 1)
	assert.Equal(t, int64(1), list.TotalCount)
	assert.False(t, list.HasNextPage)

	status, _ = app.doJSON(t, http.MethodGet, "/flows/?active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = app.doJSON(t, http.MethodPatch, "/flows/"+created.ID, map[string]any{"name": "Qualificação v2"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "Qualificação v2", decode[models.Flow](t, body).Name)

	status, body = app.doJSON(t, http.MethodPost, "/flows/"+created.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.True(t, decode[models.Flow](t, body).IsActive)

	status, _ = app.doJSON(t, http.MethodPatch, "/flows/"+created.ID, map[string]any{"department": "vendas"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = app.doJSON(t, http.MethodDelete, "/flows/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = app.doJSON(t, http.MethodPost, "/flows/"+created.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.False(t, decode[models.Flow](t, body).IsActive)

	status, _ = app.doJSON(t, http.MethodDelete, "/flows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = app.doJSON(t, http.MethodGet, "/flows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_PublishInvalidFlow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := app.doJSON(t, http.MethodPost, "/flows/", map[string]any{"name": "Vazio", "department": "vendas"})
	require.Equal(t, http.StatusCreated, status, string(body))

	created := decode[models.Flow](t, body)

	status, _ = app.doJSON(t, http.MethodPatch, "/flows/"+created.ID, map[string]any{
		"nodes": []map[string]any{
			{"id": "a", "type": "message", "position": map[string]any{"x": 0, "y": 0}, "data": map[string]any{"label": "A"}},
		},
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = app.doJSON(t, http.MethodPost, "/flows/"+created.ID+"/publish", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_TestFlow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	definition := map[string]any{
		"name":       "Teste",
		"department": "vendas",
		"nodes": []map[string]any{
			{"id": "start", "type": "start", "position": map[string]any{"x": 0, "y": 0}, "data": map[string]any{"label": "Início"}},
			{"id": "end", "type": "end", "position": map[string]any{"x": 0, "y": 100}, "data": map[string]any{
				"label":  "Fim",
				"config": map[string]any{"message": "Até logo, {{ .nome }}!"},
			}},
		},
		"edges": []map[string]any{{"id": "e1", "source": "start", "target": "end"}},
	}

	status, body := app.doJSON(t, http.MethodPost, "/flows/test", map[string]any{
		"flow":      definition,
		"variables": map[string]any{"nome": "Maria"},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var result struct {
		Status     models.SessionStatus `json:"status"`
		Transcript []struct {
			Text string `json:"text"`
		} `json:"transcript"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, models.SessionStatusCompleted, result.Status)
	require.NotEmpty(t, result.Transcript)
	assert.Equal(t, "Até logo, Maria!", result.Transcript[len(result.Transcript)-1].Text)

	status, _ = app.doJSON(t, http.MethodPost, "/flows/test", map[string]any{"inputs": []string{"oi"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = app.doJSON(t, http.MethodPost, "/flows/missing/test", map[string]any{"inputs": []string{"oi"}})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_Templates(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := app.doJSON(t, http.MethodGet, "/flows/templates", nil)
	require.Equal(t, http.StatusOK, status)

	templates := decode[[]models.FlowTemplate](t, body)
	require.NotEmpty(t, templates)
	assert.Equal(t, "blank", templates[0].ID)
}

func TestAPIHandlers_Settings(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := app.doJSON(t, http.MethodPut, "/settings/active_department", map[string]any{"value": "locação"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "locacao", decode[models.Setting](t, body).Value)

	status, body = app.doJSON(t, http.MethodGet, "/settings/active_department", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "locacao", decode[models.Setting](t, body).Value)

	status, _ = app.doJSON(t, http.MethodPut, "/settings/active_department", map[string]any{"value": "rh"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = app.doJSON(t, http.MethodGet, "/settings/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_Behavior(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, _ := app.doJSON(t, http.MethodPut, "/settings/behavior/vendas", map[string]any{"reengagement_hours": -1})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = app.doJSON(t, http.MethodGet, "/settings/behavior/rh", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := app.doJSON(t, http.MethodPut, "/settings/behavior/vendas", map[string]any{
		"agent_name":          "Ana",
		"company_name":        "Imobiliária Central",
		"tone":                "amigável",
		"business_rules":      []string{"Nunca informe o endereço exato"},
		"custom_instructions": "Responda sempre em português.",
		"reengagement_hours":  48,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = app.doJSON(t, http.MethodGet, "/settings/behavior/vendas", nil)
	require.Equal(t, http.StatusOK, status)

	behavior := decode[models.BehaviorConfig](t, body)
	assert.Equal(t, "Ana", behavior.AgentName)
	assert.Equal(t, 48, behavior.ReengagementHours)

	status, body = app.doJSON(t, http.MethodGet, "/settings/prompt/vendas", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var prompt struct {
		Text   string `json:"text"`
		Tokens int    `json:"estimated_tokens"`
	}
	require.NoError(t, json.Unmarshal(body, &prompt))
	assert.Contains(t, prompt.Text, "Ana")
	assert.True(t, strings.HasSuffix(prompt.Text, "Responda sempre em português."))
	assert.Positive(t, prompt.Tokens)
}

func TestAPIHandlers_Integrations(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"voices": []map[string]any{{"voice_id": "v1", "name": "Rachel"}},
		})
	}))
	defer server.Close()

	app := setupTestApp(t, services.WithIntegrationBaseURL(services.IntegrationElevenLabs, server.URL))

	status, _ := app.doJSON(t, http.MethodGet, "/integrations/elevenlabs/voices", nil)
	assert.Equal(t, http.StatusPreconditionFailed, status)

	status, _ = app.doJSON(t, http.MethodGet, "/integrations/clickup/tasks", nil)
	assert.Equal(t, http.StatusPreconditionFailed, status)

	_, err := app.settings.Set(t.Context(), models.SettingElevenLabsAPIKey, "xi-key")
	require.NoError(t, err)

	status, body := app.doJSON(t, http.MethodGet, "/integrations/elevenlabs/voices", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), "Rachel")
}

func TestAPIHandlers_Health(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := app.doJSON(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
}
