package nats

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/message"
)

func TestRespondResult(t *testing.T) {
	var got *message.Message
	handler := func(_ context.Context, msg *message.Message) (*message.DispatchResult, error) {
		got = msg
		return &message.DispatchResult{Transcript: "help", Reply: "You can say..."}, nil
	}
	tr := New(nil, "pathlight.dispatch", "pathlight")

	body, err := json.Marshal(Request{Audio: []byte("pcm"), Filename: "a.wav", Voice: "onyx"})
	require.NoError(t, err)

	var res message.DispatchResult
	require.NoError(t, json.Unmarshal(tr.respond(context.Background(), body, handler), &res))
	assert.Equal(t, "You can say...", res.Reply)

	require.NotNil(t, got)
	assert.Equal(t, []byte("pcm"), got.Audio)
	assert.True(t, got.TTS)
	assert.Equal(t, "onyx", got.Voice)
	assert.NotEmpty(t, got.ID)
}

func TestRespondTTSOff(t *testing.T) {
	var got *message.Message
	handler := func(_ context.Context, msg *message.Message) (*message.DispatchResult, error) {
		got = msg
		return &message.DispatchResult{}, nil
	}
	tr := New(nil, "s", "q")
	tr.respond(context.Background(), []byte(`{"id":"r1","tts":false,"audio":"YQ=="}`), handler)

	require.NotNil(t, got)
	assert.False(t, got.TTS)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, []byte("a"), got.Audio)
}

func TestRespondErrors(t *testing.T) {
	tr := New(nil, "s", "q")

	var reply ErrorReply
	require.NoError(t, json.Unmarshal(tr.respond(context.Background(), []byte("not json"), nil), &reply))
	assert.Equal(t, http.StatusBadRequest, reply.Status)
	assert.Equal(t, "invalid_input", reply.Kind)

	busy := func(context.Context, *message.Message) (*message.DispatchResult, error) {
		return nil, apierror.FromStatus(http.StatusTooManyRequests, "quota exceeded")
	}
	require.NoError(t, json.Unmarshal(tr.respond(context.Background(), []byte(`{"audio":"YQ=="}`), busy), &reply))
	assert.Equal(t, http.StatusTooManyRequests, reply.Status)
	assert.Equal(t, apierror.BusyMessage, reply.Error)
}

func TestCloseWithoutListen(t *testing.T) {
	assert.NoError(t, New(nil, "s", "q").Close())
}
