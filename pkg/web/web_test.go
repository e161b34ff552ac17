package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/corretor-crm/corretor/pkg/mocks"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/outbox"
	"github.com/corretor-crm/corretor/pkg/persistence/file"
	"github.com/corretor-crm/corretor/pkg/reengagement"
	"github.com/corretor-crm/corretor/pkg/services"
	"github.com/corretor-crm/corretor/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testToken = "s3cret"

type testApp struct {
	app         *fiber.App
	persistence *file.Persistence
	settings    *services.Settings
	queue       *outbox.MemoryQueue
	bus         *mocks.MockEventBus
}

func setupTestApp(t *testing.T, opts ...services.IntegrationsOption) *testApp {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	queue := outbox.NewMemoryQueue(100)
	logger := slog.New(slog.DiscardHandler)
	validate := validator.New(validator.WithRequiredStructEnabled())

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	settings := services.NewSettings(persistence)
	_, err := settings.Set(t.Context(), models.SettingWebhookToken, testToken)
	require.NoError(t, err)

	integrations := services.NewIntegrations(settings, opts...)
	messenger := services.NewMessenger(persistence, queue, bus, logger)
	leads := services.NewLeads(persistence, integrations, bus, logger)

	api := web.NewAPIHandlers(
		services.NewFlow(persistence, bus, nil, logger),
		settings,
		integrations,
		leads,
		validate,
	)

	webhooks := web.NewWebhookHandlers(
		settings,
		leads,
		services.NewCommunicator(persistence, settings, messenger, nil, logger),
		services.NewImporter(persistence, logger),
		reengagement.NewRunner(persistence, settings, messenger, nil, logger),
		validate,
		logger,
	)

	app := fiber.New()
	api.Register(app)
	webhooks.Register(app)

	return &testApp{app: app, persistence: persistence, settings: settings, queue: queue, bus: bus}
}

func (a *testApp) do(t *testing.T, method, target, contentType string, body io.Reader) (int, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := a.app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func (a *testApp) doJSON(t *testing.T, method, target string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		body = bytes.NewReader(data)
	}

	return a.do(t, method, target, "application/json", body)
}

func webhookURL(name string) string {
	return "/functions/v1/" + name + "?token=" + testToken
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))

	return out
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()

	return decode[web.ErrorResponse](t, body).Error
}

