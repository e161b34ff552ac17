package elevenlabs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corretor-crm/corretor/pkg/integrations"
	"github.com/corretor-crm/corretor/pkg/integrations/elevenlabs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ListVoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voices", r.URL.Path)
		assert.Equal(t, "xi-key", r.Header.Get("xi-api-key"))

		_, _ = w.Write([]byte(`{"voices":[
			{"voice_id":"v1","name":"Rachel","category":"premade","labels":{"accent":"american"}},
			{"voice_id":"v2","name":"Camila","category":"cloned"}
		]}`))
	}))
	defer server.Close()

	client := elevenlabs.NewClient("xi-key", integrations.WithBaseURL(server.URL))

	voices, err := client.ListVoices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 2)
	assert.Equal(t, "v1", voices[0].VoiceID)
	assert.Equal(t, "american", voices[0].Labels["accent"])
	assert.Equal(t, "Camila", voices[1].Name)
}

func TestClient_ListVoicesUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := elevenlabs.NewClient("bad", integrations.WithBaseURL(server.URL))

	_, err := client.ListVoices(context.Background())

	var apiErr *integrations.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
