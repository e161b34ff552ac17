// Package elevenlabs lists the voices available to the agency's ElevenLabs account.
package elevenlabs

import (
	"context"
	"net/http"

	"github.com/corretor-crm/corretor/pkg/integrations"
)

const DefaultBaseURL = "https://api.elevenlabs.io/v1"

type Voice struct {
	VoiceID    string            `json:"voice_id"`
	Name       string            `json:"name"`
	Category   string            `json:"category,omitempty"`
	PreviewURL string            `json:"preview_url,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

type Client struct {
	api *integrations.Client
}

func NewClient(apiKey string, opts ...integrations.Option) *Client {
	opts = append([]integrations.Option{integrations.WithHeader("xi-api-key", apiKey)}, opts...)

	return &Client{api: integrations.NewClient("elevenlabs", DefaultBaseURL, opts...)}
}

func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	var out struct {
		Voices []Voice `json:"voices"`
	}

	err := c.api.Do(ctx, http.MethodGet, "/voices", nil, &out)
	if err != nil {
		return nil, err
	}

	if out.Voices == nil {
		out.Voices = []Voice{}
	}

	return out.Voices, nil
}
