// Package grpc implements the gRPC transport for PathLight.
//
// The pathlight.v1.Dispatch service is registered from a hand-written
// service descriptor and speaks JSON on the wire, so callers need no
// generated stubs: any gRPC client using the "json" content-subtype works.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/message"
	"github.com/nadzzz/pathlight/internal/metrics"
	"github.com/nadzzz/pathlight/internal/transport"
)

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port     int
	feedback *transport.Feedback
	server   *grpc.Server
}

// New creates a new gRPC transport on the given port. fb may be nil.
func New(port int, fb *transport.Feedback) *Transport {
	return &Transport{port: port, feedback: fb}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, handler)
}

// Serve runs the server on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, handler transport.Handler) error {
	t.server = grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.MaxRecvMsgSize(message.MaxAudioBytes*2),
	)
	RegisterDispatchServer(t.server, &server{handler: handler, feedback: t.feedback})

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.server.GracefulStop()
	}()

	if err := t.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

type server struct {
	handler  transport.Handler
	feedback *transport.Feedback
}

func (s *server) Dispatch(ctx context.Context, in *DispatchRequest) (*message.DispatchResult, error) {
	start := time.Now()
	msg := &message.Message{
		ID:          in.RequestID,
		Mode:        in.Mode,
		Voice:       in.Voice,
		TTS:         in.TTS == nil || *in.TTS,
		Audio:       in.Audio,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Timestamp:   time.Now().UTC(),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	res, err := s.handler(ctx, msg)
	code := http.StatusOK
	if err != nil {
		code = apierror.HTTPStatus(err)
		slog.Warn("grpc dispatch failed", "request_id", msg.ID, "error", err)
	}
	metrics.RecordDispatch("grpc", code, time.Since(start))
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *server) ListFeedback(_ context.Context, in *FeedbackRequest) (*FeedbackList, error) {
	if s.feedback == nil {
		return nil, status.Error(codes.Unimplemented, "feedback is not enabled")
	}
	items, err := s.feedback.List(in.Token, in.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &FeedbackList{Items: items}, nil
}

func (s *server) LatestFeedback(_ context.Context, in *FeedbackRequest) (*LatestFeedbackResponse, error) {
	if s.feedback == nil {
		return nil, status.Error(codes.Unimplemented, "feedback is not enabled")
	}
	item, err := s.feedback.Latest(in.Token)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LatestFeedbackResponse{Item: item}, nil
}

// toStatus maps an error kind onto a gRPC status code.
func toStatus(err error) error {
	var code codes.Code
	switch apierror.KindOf(err) {
	case apierror.KindInput:
		code = codes.InvalidArgument
	case apierror.KindBusy:
		code = codes.ResourceExhausted
	case apierror.KindUnavailable:
		code = codes.Unavailable
	case apierror.KindAuth:
		code = codes.Unauthenticated
	default:
		code = codes.Internal
	}
	return status.Error(code, apierror.PublicMessage(err))
}
