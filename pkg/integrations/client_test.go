package integrations_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corretor-crm/corretor/pkg/integrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/items", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "casa", body["name"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer server.Close()

	client := integrations.NewClient("test", server.URL+"/v1/", integrations.WithHeader("X-Token", "secret"))

	var out struct {
		ID string `json:"id"`
	}

	err := client.Do(context.Background(), http.MethodPost, "/items", map[string]string{"name": "casa"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "42", out.ID)
}

func TestClient_DoAbsoluteURLAndEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hook", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := integrations.NewClient("test", "http://unused.invalid")

	var out map[string]any

	err := client.Do(context.Background(), http.MethodGet, server.URL+"/hook", nil, &out)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestClient_DoAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := integrations.NewClient("test", server.URL)

	err := client.Do(context.Background(), http.MethodGet, "/", nil, nil)
	require.Error(t, err)

	var apiErr *integrations.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "quota exceeded", apiErr.Body)
	assert.Equal(t, "test", apiErr.Service)
}

func TestClient_DoInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := integrations.NewClient("test", server.URL)

	var out map[string]any

	err := client.Do(context.Background(), http.MethodGet, "/", nil, &out)
	assert.ErrorIs(t, err, integrations.ErrInvalidResponse)
}
