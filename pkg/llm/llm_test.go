package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corretor-crm/corretor/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, reply string, inspect func(chatRequest)) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if inspect != nil {
			inspect(req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(server.Close)

	return server
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := llm.NewClient(llm.Config{})
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}

func TestClient_Complete(t *testing.T) {
	server := completionServer(t, "  Olá, Maria!  ", func(req chatRequest) {
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "Você é a Ana.", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "assistant", req.Messages[2].Role)
	})

	client, err := llm.NewClient(llm.Config{APIKey: "sk-test", BaseURL: server.URL + "/v1/"})
	require.NoError(t, err)

	reply, err := client.Complete(context.Background(), llm.Request{
		System: "Você é a Ana.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Oi"},
			{Role: llm.RoleAssistant, Content: "Olá!"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Olá, Maria!", reply)
}

func TestClient_CompleteEmpty(t *testing.T) {
	server := completionServer(t, "   ", nil)

	client, err := llm.NewClient(llm.Config{APIKey: "sk-test", BaseURL: server.URL + "/v1", Model: "llama3"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{System: "x"})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

type fakeCompleter struct {
	answer string
	err    error
	last   llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.last = req

	return f.answer, f.err
}

func TestIntentResolver(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		expected string
	}{
		{name: "exact", answer: "comprar", expected: "comprar"},
		{name: "case and punctuation", answer: "Alugar.", expected: "alugar"},
		{name: "accent folded", answer: "Locação", expected: "locacao"},
		{name: "none", answer: "nenhuma", expected: ""},
		{name: "outside the list", answer: "vender", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{answer: tt.answer}
			resolver := llm.NewIntentResolver(completer)

			intent, err := resolver.ResolveIntent(context.Background(), "quero um apê", []string{"comprar", "alugar", "locacao"})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, intent)
			assert.Contains(t, completer.last.System, "comprar, alugar, locacao")
		})
	}
}

func TestIntentResolver_NoIntents(t *testing.T) {
	completer := &fakeCompleter{answer: "comprar"}

	intent, err := llm.NewIntentResolver(completer).ResolveIntent(context.Background(), "oi", nil)
	require.NoError(t, err)
	assert.Empty(t, intent)
	assert.Empty(t, completer.last.System)
}
