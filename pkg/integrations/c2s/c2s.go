// Package c2s forwards leads to the Contact2Sale (C2S) CRM.
package c2s

import (
	"context"
	"net/http"

	"github.com/corretor-crm/corretor/pkg/integrations"
)

const DefaultBaseURL = "https://api.contact2sale.com/integration"

// Lead is the lead intake payload.
type Lead struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email,omitempty"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	Type        string `json:"type,omitempty"` // sale or rent
}

type LeadResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

type Client struct {
	api *integrations.Client
}

func NewClient(token string, opts ...integrations.Option) *Client {
	opts = append([]integrations.Option{integrations.WithHeader("Authorization", "Bearer "+token)}, opts...)

	return &Client{api: integrations.NewClient("c2s", DefaultBaseURL, opts...)}
}

func (c *Client) CreateLead(ctx context.Context, lead Lead) (*LeadResponse, error) {
	var out struct {
		Data LeadResponse `json:"data"`
	}

	err := c.api.Do(ctx, http.MethodPost, "/leads", map[string]any{"data": lead}, &out)
	if err != nil {
		return nil, err
	}

	return &out.Data, nil
}
