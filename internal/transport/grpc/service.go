package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/nadzzz/pathlight/internal/feedback"
	"github.com/nadzzz/pathlight/internal/message"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pathlight.v1.Dispatch"

// Full method names.
const (
	MethodDispatch       = "/" + ServiceName + "/Dispatch"
	MethodListFeedback   = "/" + ServiceName + "/ListFeedback"
	MethodLatestFeedback = "/" + ServiceName + "/LatestFeedback"
)

// DispatchRequest is one recorded utterance. TTS defaults to true when unset.
type DispatchRequest struct {
	Mode        string `json:"mode,omitempty"`
	Voice       string `json:"voice,omitempty"`
	TTS         *bool  `json:"tts,omitempty"`
	Audio       []byte `json:"audio"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// FeedbackRequest reads the feedback log.
type FeedbackRequest struct {
	Token string `json:"token,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// FeedbackList is the ListFeedback response, newest first.
type FeedbackList struct {
	Items []feedback.Item `json:"items"`
}

// LatestFeedbackResponse holds the newest item, nil when the log is empty.
type LatestFeedbackResponse struct {
	Item *feedback.Item `json:"item"`
}

// DispatchServer is the server API for the Dispatch service.
type DispatchServer interface {
	Dispatch(context.Context, *DispatchRequest) (*message.DispatchResult, error)
	ListFeedback(context.Context, *FeedbackRequest) (*FeedbackList, error)
	LatestFeedback(context.Context, *FeedbackRequest) (*LatestFeedbackResponse, error)
}

// RegisterDispatchServer registers srv on s.
func RegisterDispatchServer(s grpc.ServiceRegistrar, srv DispatchServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DispatchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
		{MethodName: "ListFeedback", Handler: listFeedbackHandler},
		{MethodName: "LatestFeedback", Handler: latestFeedbackHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pathlight/v1/dispatch",
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DispatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DispatchServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodDispatch}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DispatchServer).Dispatch(ctx, req.(*DispatchRequest))
	})
}

func listFeedbackHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FeedbackRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DispatchServer).ListFeedback(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListFeedback}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DispatchServer).ListFeedback(ctx, req.(*FeedbackRequest))
	})
}

func latestFeedbackHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FeedbackRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DispatchServer).LatestFeedback(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodLatestFeedback}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DispatchServer).LatestFeedback(ctx, req.(*FeedbackRequest))
	})
}

// Client calls the Dispatch service over any connection, using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Dispatch(ctx context.Context, in *DispatchRequest, opts ...grpc.CallOption) (*message.DispatchResult, error) {
	out := new(message.DispatchResult)
	if err := c.cc.Invoke(ctx, MethodDispatch, in, out, append(opts, grpc.ForceCodec(jsonCodec{}))...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListFeedback(ctx context.Context, in *FeedbackRequest, opts ...grpc.CallOption) (*FeedbackList, error) {
	out := new(FeedbackList)
	if err := c.cc.Invoke(ctx, MethodListFeedback, in, out, append(opts, grpc.ForceCodec(jsonCodec{}))...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LatestFeedback(ctx context.Context, in *FeedbackRequest, opts ...grpc.CallOption) (*LatestFeedbackResponse, error) {
	out := new(LatestFeedbackResponse)
	if err := c.cc.Invoke(ctx, MethodLatestFeedback, in, out, append(opts, grpc.ForceCodec(jsonCodec{}))...); err != nil {
		return nil, err
	}
	return out, nil
}
