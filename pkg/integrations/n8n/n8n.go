// Package n8n triggers N8N workflows through their webhook URL.
package n8n

import (
	"context"
	"net/http"
	"time"

	"github.com/corretor-crm/corretor/pkg/integrations"
)

// Event is the body posted to the N8N webhook.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Callback is what an N8N workflow posts back to n8n-callback.
type Callback struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Department     string `json:"department,omitempty"`
	Message        string `json:"message"`
}

type Client struct {
	webhookURL string
	api        *integrations.Client
}

func NewClient(webhookURL string, opts ...integrations.Option) *Client {
	return &Client{
		webhookURL: webhookURL,
		api:        integrations.NewClient("n8n", webhookURL, opts...),
	}
}

// Trigger posts event to the webhook. The N8N response body is ignored.
func (c *Client) Trigger(ctx context.Context, eventType string, data map[string]any) error {
	if c.webhookURL == "" {
		return integrations.ErrNotConfigured
	}

	return c.api.Do(ctx, http.MethodPost, c.webhookURL, Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil)
}
