package grpc

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nadzzz/pathlight/internal/action"
	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/feedback"
	"github.com/nadzzz/pathlight/internal/message"
	"github.com/nadzzz/pathlight/internal/transport"
)

func startServer(t *testing.T, fb *transport.Feedback, handler transport.Handler) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	tr := New(0, fb)
	done := make(chan error, 1)
	go func() { done <- tr.Serve(ctx, lis, handler) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("grpc server did not stop")
		}
	})
	return NewClient(conn)
}

func TestDispatch(t *testing.T) {
	var got *message.Message
	client := startServer(t, nil, func(_ context.Context, msg *message.Message) (*message.DispatchResult, error) {
		got = msg
		return &message.DispatchResult{
			Transcript: "speech off",
			Reply:      "Speech off.",
			Action:     action.New(action.SetTTS, action.Args{action.ArgEnabled: action.Bool(false)}),
		}, nil
	})

	res, err := client.Dispatch(context.Background(), &DispatchRequest{Audio: []byte("a"), Filename: "a.wav", Voice: "echo"})
	require.NoError(t, err)

	assert.Equal(t, "Speech off.", res.Reply)
	enabled, ok := res.Action.Bool(action.ArgEnabled)
	assert.True(t, ok)
	assert.False(t, enabled)

	require.NotNil(t, got)
	assert.True(t, got.TTS, "tts defaults to on")
	assert.Equal(t, "echo", got.Voice)
	assert.NotEmpty(t, got.ID)
}

func TestDispatchErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{apierror.Input(http.StatusBadRequest, "missing audio file"), codes.InvalidArgument},
		{apierror.FromStatus(http.StatusTooManyRequests, ""), codes.ResourceExhausted},
		{apierror.FromStatus(http.StatusServiceUnavailable, ""), codes.Unavailable},
		{apierror.FromStatus(http.StatusTeapot, ""), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			client := startServer(t, nil, func(context.Context, *message.Message) (*message.DispatchResult, error) {
				return nil, tt.err
			})
			_, err := client.Dispatch(context.Background(), &DispatchRequest{})
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestFeedback(t *testing.T) {
	store := feedback.NewStore(5, nil)
	store.Append(context.Background(), feedback.Item{ID: "1", Note: "first"})
	store.Append(context.Background(), feedback.Item{ID: "2", Note: "second"})
	client := startServer(t, transport.NewFeedback(store, feedback.NewGate("tok")), nil)

	list, err := client.ListFeedback(context.Background(), &FeedbackRequest{Token: "tok", Limit: 1})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "2", list.Items[0].ID)

	latest, err := client.LatestFeedback(context.Background(), &FeedbackRequest{Token: "tok"})
	require.NoError(t, err)
	require.NotNil(t, latest.Item)
	assert.Equal(t, "second", latest.Item.Note)

	_, err = client.ListFeedback(context.Background(), &FeedbackRequest{Token: "nope"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.ListFeedback(context.Background(), &FeedbackRequest{Token: "tok", Limit: 999})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestFeedbackDisabled(t *testing.T) {
	client := startServer(t, nil, nil)
	_, err := client.LatestFeedback(context.Background(), &FeedbackRequest{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
