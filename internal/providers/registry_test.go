package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/llm"
	"github.com/Messijah/PedagogiskDialog/internal/models"
)

func newFakeServer(t *testing.T, status int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
			return
		}
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "chatcmpl-1",
			"model": body["model"],
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": "Problemformulering klar"}},
			},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8},
		})
	})
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "sv", r.FormValue("language"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Vi pratade om digitalisering."}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRegistryUnknownBackend(t *testing.T) {
	r := NewRegistry()

	_, err := r.NewCompleter(config.LLMConfig{Backend: "nope"})
	assert.ErrorContains(t, err, "unknown llm backend")
}

func TestMissingCredentials(t *testing.T) {
	r := NewRegistry()

	_, err := r.NewCompleter(config.LLMConfig{Backend: "openai"})
	assert.ErrorIs(t, err, models.ErrNotConfigured)

	_, err = r.NewTranscriber(config.TranscriptionConfig{Backend: "local"})
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}

func TestLocalCompleter(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK)
	r := NewRegistry()

	c, err := r.NewCompleter(config.LLMConfig{Backend: "local", BaseURL: srv.URL, Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, "local", c.Name())

	resp, err := c.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hej"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Problemformulering klar", resp.Content)
	assert.Equal(t, "llama3", resp.Model)
	assert.Equal(t, 8, resp.Usage.TotalTokens)
}

func TestLocalCompleterKeepsStatus(t *testing.T) {
	srv := newFakeServer(t, http.StatusTooManyRequests)

	c, err := NewRegistry().NewCompleter(config.LLMConfig{Backend: "local", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hej"}},
	})
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.True(t, llm.IsRetryable(err))
}

func TestLocalTranscriber(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK)
	path := filepath.Join(t.TempDir(), "inspelning.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF...."), 0o644))

	tr, err := NewRegistry().NewTranscriber(config.TranscriptionConfig{Backend: "local", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), llm.TranscriptionRequest{FilePath: path, Language: "sv"})
	require.NoError(t, err)
	assert.Equal(t, "Vi pratade om digitalisering.", text)
}
