package services

import (
	"context"

	"github.com/corretor-crm/corretor/pkg/integrations"
	"github.com/corretor-crm/corretor/pkg/integrations/c2s"
	"github.com/corretor-crm/corretor/pkg/integrations/clickup"
	"github.com/corretor-crm/corretor/pkg/integrations/elevenlabs"
	"github.com/corretor-crm/corretor/pkg/integrations/n8n"
	"github.com/corretor-crm/corretor/pkg/models"
)

// Integration names, also used to override base URLs.
const (
	IntegrationClickUp    = "clickup"
	IntegrationC2S        = "c2s"
	IntegrationElevenLabs = "elevenlabs"
)

// Integrations builds third-party clients from the credentials stored in
// system_settings, so operators can change them without a restart.
type Integrations struct {
	settings *Settings
	baseURLs map[string]string
}

type IntegrationsOption func(*Integrations)

// WithIntegrationBaseURL points one integration at another host.
func WithIntegrationBaseURL(name, baseURL string) IntegrationsOption {
	return func(i *Integrations) { i.baseURLs[name] = baseURL }
}

func NewIntegrations(settings *Settings, opts ...IntegrationsOption) *Integrations {
	i := &Integrations{settings: settings, baseURLs: map[string]string{}}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

func (i *Integrations) options(name string) []integrations.Option {
	if baseURL, ok := i.baseURLs[name]; ok {
		return []integrations.Option{integrations.WithBaseURL(baseURL)}
	}

	return nil
}

// ClickUp returns the client and the list new lead tasks go to.
func (i *Integrations) ClickUp(ctx context.Context) (*clickup.Client, string, error) {
	token, err := i.settings.Value(ctx, models.SettingClickUpToken)
	if err != nil {
		return nil, "", err
	}

	listID, err := i.settings.Value(ctx, models.SettingClickUpListID)
	if err != nil {
		return nil, "", err
	}

	if token == "" {
		return nil, "", integrations.ErrNotConfigured
	}

	return clickup.NewClient(token, i.options(IntegrationClickUp)...), listID, nil
}

func (i *Integrations) C2S(ctx context.Context) (*c2s.Client, error) {
	token, err := i.settings.Value(ctx, models.SettingC2SToken)
	if err != nil {
		return nil, err
	}

	if token == "" {
		return nil, integrations.ErrNotConfigured
	}

	return c2s.NewClient(token, i.options(IntegrationC2S)...), nil
}

func (i *Integrations) N8N(ctx context.Context) (*n8n.Client, error) {
	webhookURL, err := i.settings.Value(ctx, models.SettingN8NWebhookURL)
	if err != nil {
		return nil, err
	}

	if webhookURL == "" {
		return nil, integrations.ErrNotConfigured
	}

	return n8n.NewClient(webhookURL), nil
}

func (i *Integrations) ElevenLabs(ctx context.Context) (*elevenlabs.Client, error) {
	apiKey, err := i.settings.Value(ctx, models.SettingElevenLabsAPIKey)
	if err != nil {
		return nil, err
	}

	if apiKey == "" {
		return nil, integrations.ErrNotConfigured
	}

	return elevenlabs.NewClient(apiKey, i.options(IntegrationElevenLabs)...), nil
}

// ElevenLabsVoices lists the voices of the configured account.
func (i *Integrations) ElevenLabsVoices(ctx context.Context) ([]elevenlabs.Voice, error) {
	client, err := i.ElevenLabs(ctx)
	if err != nil {
		return nil, err
	}

	return client.ListVoices(ctx)
}

// ClickUpTasks lists the tasks of the configured lead list.
func (i *Integrations) ClickUpTasks(ctx context.Context) ([]clickup.Task, error) {
	client, listID, err := i.ClickUp(ctx)
	if err != nil {
		return nil, err
	}

	if listID == "" {
		return nil, integrations.ErrNotConfigured
	}

	return client.ListTasks(ctx, listID)
}
