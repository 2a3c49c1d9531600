package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/pathlight/internal/action"
	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/config"
	"github.com/nadzzz/pathlight/internal/feedback"
	"github.com/nadzzz/pathlight/internal/message"
	"github.com/nadzzz/pathlight/internal/transport"
)

type form struct {
	fields   map[string]string
	filename string
	audio    []byte
}

func (f form) encode(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range f.fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if f.filename != "" {
		part, err := w.CreateFormFile("audio", f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.audio)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func newServer(t *testing.T, cfg config.HTTPConfig, store *feedback.Store, token string, handler transport.Handler) *httptest.Server {
	t.Helper()
	var fb *transport.Feedback
	if store != nil {
		fb = transport.NewFeedback(store, feedback.NewGate(token))
	}
	srv := httptest.NewServer(New(cfg, fb).Routes(handler))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, f form) *http.Response {
	t.Helper()
	body, ct := f.encode(t)
	resp, err := http.Post(srv.URL+"/dispatch", ct, body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newServer(t, config.HTTPConfig{}, nil, "", nil)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["ok"])
}

func TestDispatchDefaultsAndResult(t *testing.T) {
	var got *message.Message
	handler := func(_ context.Context, msg *message.Message) (*message.DispatchResult, error) {
		got = msg
		res := &message.DispatchResult{
			Transcript: "Volume up.",
			Reply:      "Volume up.",
			Action:     action.New(action.AdjustVolume, action.Args{action.ArgDelta: action.Number(0.1)}),
		}
		res.SetAudio([]byte("mp3"), "audio/mpeg")
		return res, nil
	}
	srv := newServer(t, config.HTTPConfig{}, nil, "", handler)

	resp := post(t, srv, form{filename: "speech.m4a", audio: []byte("audio")})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	require.NotNil(t, got)
	assert.True(t, got.TTS)
	assert.Equal(t, []byte("audio"), got.Audio)
	assert.Equal(t, "speech.m4a", got.Filename)
	assert.Equal(t, resp.Header.Get(RequestIDHeader), got.ID)

	var res message.DispatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, action.AdjustVolume, res.Action.Name)
	delta, ok := res.Action.Number(action.ArgDelta)
	assert.True(t, ok)
	assert.InDelta(t, 0.1, delta, 1e-9)
	audio, err := res.AudioBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
}

func TestDispatchFields(t *testing.T) {
	var got *message.Message
	handler := func(_ context.Context, msg *message.Message) (*message.DispatchResult, error) {
		got = msg
		return &message.DispatchResult{}, nil
	}
	srv := newServer(t, config.HTTPConfig{}, nil, "", handler)

	resp := post(t, srv, form{
		fields:   map[string]string{"mode": "pathlight_dispatch_v1", "voice": "shimmer", "tts": "0"},
		filename: "speech.wav",
		audio:    []byte("a"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pathlight_dispatch_v1", got.Mode)
	assert.Equal(t, "shimmer", got.Voice)
	assert.False(t, got.TTS)
}

func TestDispatchRejections(t *testing.T) {
	called := false
	handler := func(context.Context, *message.Message) (*message.DispatchResult, error) {
		called = true
		return &message.DispatchResult{}, nil
	}
	srv := newServer(t, config.HTTPConfig{MaxUploadBytes: 8}, nil, "", handler)

	tests := []struct {
		name   string
		form   form
		status int
	}{
		{"missing file", form{fields: map[string]string{"mode": "talk"}}, http.StatusBadRequest},
		{"too large", form{filename: "a.m4a", audio: bytes.Repeat([]byte("x"), 9)}, http.StatusRequestEntityTooLarge},
		{"bad extension", form{filename: "a.ogg", audio: []byte("x")}, http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, tt.form)
			assert.Equal(t, tt.status, resp.StatusCode)
			var body errorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
		})
	}
	assert.False(t, called)

	resp, err := http.Post(srv.URL+"/dispatch", "application/json", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDispatchErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"rate limited", apierror.FromStatus(http.StatusTooManyRequests, "quota"), http.StatusTooManyRequests, apierror.BusyMessage},
		{"cold start", apierror.FromStatus(http.StatusServiceUnavailable, ""), http.StatusServiceUnavailable, "upstream temporarily unavailable"},
		{"gateway timeout", apierror.FromStatus(http.StatusGatewayTimeout, ""), http.StatusGatewayTimeout, "upstream temporarily unavailable"},
		{"unclassified", io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal error"},
		{"upstream 400 is opaque", apierror.FromStatus(http.StatusBadRequest, "secret details"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, config.HTTPConfig{}, nil, "", func(context.Context, *message.Message) (*message.DispatchResult, error) {
				return nil, tt.err
			})
			resp := post(t, srv, form{filename: "a.m4a", audio: []byte("x")})
			assert.Equal(t, tt.status, resp.StatusCode)
			var body errorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.message, body.Error)
		})
	}
}

func seededStore(n int) *feedback.Store {
	s := feedback.NewStore(10, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		s.Append(context.Background(), feedback.Item{ID: string(rune('a' + i)), Timestamp: base.Add(time.Duration(i) * time.Minute), Note: "n"})
	}
	return s
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestFeedbackList(t *testing.T) {
	srv := newServer(t, config.HTTPConfig{}, seededStore(3), "s3cret", nil)

	var items []feedback.Item
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/feedback?token=s3cret&limit=2", &items))
	require.Len(t, items, 2)
	assert.Equal(t, "c", items[0].ID)
	assert.Equal(t, "b", items[1].ID)

	assert.Equal(t, http.StatusUnauthorized, getJSON(t, srv.URL+"/feedback?token=wrong", nil))
	assert.Equal(t, http.StatusUnauthorized, getJSON(t, srv.URL+"/feedback", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/feedback?token=s3cret&limit=500", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/feedback?token=s3cret&limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/feedback?token=s3cret&limit=0", nil))
}

func TestFeedbackListChecksTokenBeforeLimit(t *testing.T) {
	srv := newServer(t, config.HTTPConfig{}, seededStore(3), "s3cret", nil)

	assert.Equal(t, http.StatusUnauthorized, getJSON(t, srv.URL+"/feedback?limit=abc", nil))
	assert.Equal(t, http.StatusUnauthorized, getJSON(t, srv.URL+"/feedback?token=wrong&limit=0", nil))
	assert.Equal(t, http.StatusUnauthorized, getJSON(t, srv.URL+"/feedback?token=wrong&limit=500", nil))
}

func TestFeedbackLatest(t *testing.T) {
	srv := newServer(t, config.HTTPConfig{}, seededStore(2), "", nil)
	var item feedback.Item
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/feedback/latest", &item))
	assert.Equal(t, "b", item.ID)

	empty := newServer(t, config.HTTPConfig{}, feedback.NewStore(5, nil), "", nil)
	resp, err := http.Get(empty.URL + "/feedback/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "null", string(bytes.TrimSpace(body)))
}

func TestRequestIDPropagated(t *testing.T) {
	srv := newServer(t, config.HTTPConfig{}, nil, "", nil)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}
