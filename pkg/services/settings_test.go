package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corretor-crm/corretor/pkg/integrations"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_VerifyWebhookToken(t *testing.T) {
	env := newTestEnv(t)

	require.ErrorIs(t, env.settings.VerifyWebhookToken(t.Context(), "anything"), ErrUnauthorized)

	env.setting(t, models.SettingWebhookToken, "s3cret")

	require.NoError(t, env.settings.VerifyWebhookToken(t.Context(), "s3cret"))
	require.ErrorIs(t, env.settings.VerifyWebhookToken(t.Context(), "s3cre"), ErrUnauthorized)
	require.ErrorIs(t, env.settings.VerifyWebhookToken(t.Context(), ""), ErrUnauthorized)
	assert.True(t, IsUnauthorizedError(env.settings.VerifyWebhookToken(t.Context(), "x")))
}

func TestSettings_Set(t *testing.T) {
	env := newTestEnv(t)

	setting, err := env.settings.Set(t.Context(), models.SettingActiveDepartment, "Locação")
	require.NoError(t, err)
	assert.Equal(t, "locacao", setting.Value)

	department, err := env.settings.ActiveDepartment(t.Context())
	require.NoError(t, err)
	assert.Equal(t, models.DepartmentLocacao, department)

	_, err = env.settings.Set(t.Context(), models.SettingActiveDepartment, "rh")
	require.ErrorIs(t, err, ErrInvalidDepartment)

	_, err = env.settings.Set(t.Context(), " ", "x")
	require.ErrorIs(t, err, ErrInvalidRequest)

	value, err := env.settings.Value(t.Context(), "missing")
	require.NoError(t, err)
	assert.Empty(t, value)

	_, err = env.settings.Get(t.Context(), "missing")
	assert.True(t, IsNotFoundError(err))
}

func TestSettings_Behavior(t *testing.T) {
	env := newTestEnv(t)

	behavior, err := env.settings.Behavior(t.Context(), models.DepartmentVendas)
	require.NoError(t, err)
	assert.Equal(t, models.DepartmentVendas, behavior.Department)
	assert.Empty(t, behavior.PromptOverride)

	_, err = env.settings.Behavior(t.Context(), "rh")
	require.ErrorIs(t, err, ErrInvalidDepartment)

	_, err = env.settings.SaveBehavior(t.Context(), &models.BehaviorConfig{Department: models.DepartmentVendas, ReengagementHours: -1})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = env.settings.SaveBehavior(t.Context(), &models.BehaviorConfig{
		Department:     models.DepartmentVendas,
		PromptOverride: "Você é a Ana.",
	})
	require.NoError(t, err)

	prompt, err := env.settings.Prompt(t.Context(), models.DepartmentVendas)
	require.NoError(t, err)
	assert.True(t, prompt.Overridden)
	assert.Equal(t, "Você é a Ana.", prompt.Text)

	prompt, err = env.settings.Prompt(t.Context(), models.DepartmentLocacao)
	require.NoError(t, err)
	assert.False(t, prompt.Overridden)
	assert.Positive(t, prompt.Tokens)
}

func TestIntegrations_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	service := NewIntegrations(env.settings)

	_, err := service.ElevenLabsVoices(t.Context())
	require.ErrorIs(t, err, integrations.ErrNotConfigured)

	env.setting(t, models.SettingClickUpToken, "token")

	_, err = service.ClickUpTasks(t.Context())
	require.ErrorIs(t, err, integrations.ErrNotConfigured)
}

func TestIntegrations_ElevenLabsVoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voices", r.URL.Path)
		assert.Equal(t, "xi-key", r.Header.Get("xi-api-key"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"voices": []map[string]any{{"voice_id": "v1", "name": "Rachel"}},
		})
	}))
	defer server.Close()

	env := newTestEnv(t)
	env.setting(t, models.SettingElevenLabsAPIKey, "xi-key")

	service := NewIntegrations(env.settings, WithIntegrationBaseURL(IntegrationElevenLabs, server.URL))

	voices, err := service.ElevenLabsVoices(t.Context())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "Rachel", voices[0].Name)
}
