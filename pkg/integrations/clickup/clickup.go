// Package clickup creates and manages ClickUp tasks for incoming leads.
package clickup

import (
	"context"
	"net/http"
	"net/url"

	"github.com/corretor-crm/corretor/pkg/integrations"
)

const DefaultBaseURL = "https://api.clickup.com/api/v2"

type Status struct {
	Status string `json:"status"`
}

type Tag struct {
	Name string `json:"name"`
}

type Task struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	Tags        []Tag  `json:"tags,omitempty"`
	URL         string `json:"url,omitempty"`
	DateCreated string `json:"date_created,omitempty"`
}

// TaskRequest is the body of create and update calls. Empty fields are not sent.
type TaskRequest struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
}

type Client struct {
	api *integrations.Client
}

// NewClient authenticates with a personal API token.
func NewClient(token string, opts ...integrations.Option) *Client {
	opts = append([]integrations.Option{integrations.WithHeader("Authorization", token)}, opts...)

	return &Client{api: integrations.NewClient("clickup", DefaultBaseURL, opts...)}
}

func (c *Client) CreateTask(ctx context.Context, listID string, req TaskRequest) (*Task, error) {
	var task Task

	err := c.api.Do(ctx, http.MethodPost, "/list/"+url.PathEscape(listID)+"/task", req, &task)
	if err != nil {
		return nil, err
	}

	return &task, nil
}

func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task

	err := c.api.Do(ctx, http.MethodGet, "/task/"+url.PathEscape(taskID), nil, &task)
	if err != nil {
		return nil, err
	}

	return &task, nil
}

func (c *Client) UpdateTask(ctx context.Context, taskID string, req TaskRequest) (*Task, error) {
	var task Task

	err := c.api.Do(ctx, http.MethodPut, "/task/"+url.PathEscape(taskID), req, &task)
	if err != nil {
		return nil, err
	}

	return &task, nil
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.api.Do(ctx, http.MethodDelete, "/task/"+url.PathEscape(taskID), nil, nil)
}

// ListTasks returns the first page of open tasks of a list.
func (c *Client) ListTasks(ctx context.Context, listID string) ([]Task, error) {
	var out struct {
		Tasks []Task `json:"tasks"`
	}

	err := c.api.Do(ctx, http.MethodGet, "/list/"+url.PathEscape(listID)+"/task", nil, &out)
	if err != nil {
		return nil, err
	}

	if out.Tasks == nil {
		out.Tasks = []Task{}
	}

	return out.Tasks, nil
}
