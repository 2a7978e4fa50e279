package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madlen/chat-backend/pkg/history"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Referer: "http://localhost:3000",
		Title:   "Madlen Chat",
	}, zerolog.Nop())
}

func TestClient_MissingKeyIsConfigurationError(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://unused"}, zerolog.Nop())

	_, err := client.ListModels(context.Background())
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)

	_, err = client.Complete(context.Background(), CompletionRequest{Model: "m1"})
	require.ErrorAs(t, err, &confErr)
}

func TestClient_ListModels(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "http://localhost:3000", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Madlen Chat", r.Header.Get("X-Title"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":[
			{"id":"free/one","name":"Free One","context_length":8192,"pricing":{"prompt":"0","completion":0}},
			{"id":"paid/one","pricing":{"prompt":0.01,"completion":"0"}}
		]}`)
	}))

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)

	assert.Equal(t, "free/one", models[0].ID)
	assert.Equal(t, "Free One", models[0].Name)
	assert.Equal(t, 8192, models[0].ContextLength)
	assert.True(t, models[0].Pricing.IsFree())
	assert.False(t, models[1].Pricing.IsFree())
}

func TestClient_ListModelsUpstreamFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))

	_, err := client.ListModels(context.Background())
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadGateway, upErr.Status)
}

func TestClient_CompleteAppliesDefaultTemperature(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","choices":[{"message":{"role":"assistant","content":"hello there"}}]}`)
	}))

	completion, err := client.Complete(context.Background(), CompletionRequest{
		Model:    "m1",
		Messages: MapHistory([]history.Message{{Role: history.RoleUser, Content: "hi"}}),
	})
	require.NoError(t, err)

	require.Len(t, completion.Choices, 1)
	assert.Equal(t, "hello there", completion.Choices[0].Message.Content)
	assert.Equal(t, "m1", body["model"])
	assert.InDelta(t, DefaultTemperature, body["temperature"].(float64), 1e-9)
}

func TestClient_CompletePassesExplicitTemperature(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))

	temp := 0.9
	_, err := client.Complete(context.Background(), CompletionRequest{
		Model:       "m1",
		Messages:    MapHistory([]history.Message{{Role: history.RoleUser, Content: "hi"}}),
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, body["temperature"].(float64), 1e-9)
}

func TestClient_CompleteUpstreamFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))

	_, err := client.Complete(context.Background(), CompletionRequest{
		Model:    "m1",
		Messages: MapHistory([]history.Message{{Role: history.RoleUser, Content: "hi"}}),
	})
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
}
