// Package whatsapp sends text messages through the WhatsApp gateway.
package whatsapp

import (
	"context"
	"net/http"

	"github.com/corretor-crm/corretor/pkg/integrations"
)

type sendRequest struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

// SendResult is the gateway acknowledgement.
type SendResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Client struct {
	api *integrations.Client
}

// NewClient targets the gateway at baseURL, authenticating with a bearer token.
func NewClient(baseURL, token string, opts ...integrations.Option) *Client {
	if token != "" {
		opts = append([]integrations.Option{integrations.WithHeader("Authorization", "Bearer "+token)}, opts...)
	}

	return &Client{api: integrations.NewClient("whatsapp", baseURL, opts...)}
}

// SendText delivers text to phone (digits with country code).
func (c *Client) SendText(ctx context.Context, phone, text string) (*SendResult, error) {
	var out SendResult

	err := c.api.Do(ctx, http.MethodPost, "/messages", sendRequest{Phone: phone, Text: text}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}
