package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/stickerforge/internal/backend"
	"github.com/ekisa-team/stickerforge/internal/config"
)

func TestBackend_Infer(t *testing.T) {
	var gotModel, gotFilename, gotAuth, gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)

		gotModel = r.FormValue("model")
		gotFilename = hdr.Filename
		gotAuth = r.Header.Get("Authorization")
		gotLanguage = r.FormValue("language")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "a happy robot"}`))
	}))
	defer srv.Close()

	t.Setenv("STICKERFORGE_TEST_KEY", "sk-test")

	b, err := NewBackend(config.OpenAIConfig{BaseURL: srv.URL + "/v1/", APIKeyEnv: "STICKERFORGE_TEST_KEY"},
		option.WithMaxRetries(0))
	require.NoError(t, err)

	resp, err := b.Infer(context.Background(), &backend.Request{
		Input:      strings.NewReader("OggS..."),
		Parameters: map[string]any{backend.ParamFilename: "memo.ogg"},
	})
	require.NoError(t, err)

	text, err := io.ReadAll(resp.Output)
	require.NoError(t, err)
	assert.Equal(t, "a happy robot", string(text))
	assert.Equal(t, DefaultModel, gotModel)
	assert.Equal(t, "memo.ogg", gotFilename)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Empty(t, gotLanguage)
}

func TestBackend_InferConfiguredLanguage(t *testing.T) {
	var gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotLanguage = r.FormValue("language")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "un gato"}`))
	}))
	defer srv.Close()

	t.Setenv("STICKERFORGE_TEST_KEY", "sk-test")

	b, err := NewBackend(config.OpenAIConfig{BaseURL: srv.URL + "/", APIKeyEnv: "STICKERFORGE_TEST_KEY", Language: "es"},
		option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = b.Infer(context.Background(), &backend.Request{Input: strings.NewReader("OggS")})
	require.NoError(t, err)
	assert.Equal(t, "es", gotLanguage)

	_, err = b.Infer(context.Background(), &backend.Request{
		Input:      strings.NewReader("OggS"),
		Parameters: map[string]any{backend.ParamLanguage: "fr"},
	})
	require.NoError(t, err)
	assert.Equal(t, "fr", gotLanguage)
}

func TestBackend_InferAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid file format.", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	t.Setenv("STICKERFORGE_TEST_KEY", "sk-test")

	b, err := NewBackend(config.OpenAIConfig{BaseURL: srv.URL + "/", APIKeyEnv: "STICKERFORGE_TEST_KEY", Language: "en"},
		option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = b.Infer(context.Background(), &backend.Request{Input: strings.NewReader("not audio")})
	assert.ErrorContains(t, err, "transcription request failed")
}

func TestBackend_InferEmpty(t *testing.T) {
	t.Setenv("STICKERFORGE_TEST_KEY", "sk-test")

	b, err := NewBackend(config.OpenAIConfig{APIKeyEnv: "STICKERFORGE_TEST_KEY"})
	require.NoError(t, err)

	_, err = b.Infer(context.Background(), &backend.Request{Input: strings.NewReader("")})
	assert.ErrorIs(t, err, backend.ErrEmptyInput)
}

func TestNewBackend_MissingKey(t *testing.T) {
	t.Setenv("STICKERFORGE_TEST_KEY", "")

	_, err := NewBackend(config.OpenAIConfig{APIKeyEnv: "STICKERFORGE_TEST_KEY"})
	assert.ErrorIs(t, err, backend.ErrUnconfigured)
}
