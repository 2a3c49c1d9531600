package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/config"
	"github.com/nadzzz/pathlight/internal/tts"
)

func TestSynthesize(t *testing.T) {
	var got speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	s := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"}, config.OpenAITTSConfig{})
	res, err := s.Synthesize(context.Background(), "Volume up.", tts.Opts{Voice: "Shimmer"})
	require.NoError(t, err)

	assert.Equal(t, []byte("ID3fake"), res.Audio)
	assert.Equal(t, "audio/mpeg", res.MIME)
	assert.Equal(t, "shimmer", got.Voice)
	assert.Equal(t, "tts-1", got.Model)
	assert.Equal(t, "mp3", got.ResponseFormat)
}

func TestSynthesizeUnknownVoiceFallsBack(t *testing.T) {
	var got speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	s := New(config.OpenAIConfig{BaseURL: srv.URL}, config.OpenAITTSConfig{Format: "wav"})
	res, err := s.Synthesize(context.Background(), "hi", tts.Opts{Voice: "robot"})
	require.NoError(t, err)
	assert.Equal(t, "nova", got.Voice)
	assert.Equal(t, "audio/wav", res.MIME)
}

func TestSynthesizeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := New(config.OpenAIConfig{BaseURL: srv.URL}, config.OpenAITTSConfig{})
	_, err := s.Synthesize(context.Background(), "hi", tts.Opts{})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBusy))
}
