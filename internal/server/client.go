package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nupi-ai/stt-whisper-bridge/internal/config"
	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

// Client calls a remote Transcriber.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens a plaintext connection that uses the JSON codec by default.
// Messages are capped at config.DefaultMaxMessageBytes unless opts carry
// WithMaxMessageBytes.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
		WithMaxMessageBytes(config.DefaultMaxMessageBytes),
	}
	return grpc.NewClient(target, append(base, opts...)...)
}

// WithMaxMessageBytes sets the client's send and receive limits to n bytes.
func WithMaxMessageBytes(n int) grpc.DialOption {
	return grpc.WithDefaultCallOptions(
		grpc.MaxCallSendMsgSize(n),
		grpc.MaxCallRecvMsgSize(n),
	)
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

func (c *Client) Configure(ctx context.Context, cfg stt.Config, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "Configure", &ConfigureRequest{Config: cfg}, new(ConfigureResponse), opts)
}

// OpenContext returns the handle and the model path the server opened.
func (c *Client) OpenContext(ctx context.Context, modelPath string, opts ...grpc.CallOption) (stt.Handle, string, error) {
	out := new(OpenContextResponse)
	if err := c.invoke(ctx, "OpenContext", &OpenContextRequest{ModelPath: modelPath}, out, opts); err != nil {
		return 0, "", err
	}
	return stt.Handle(out.Handle), out.ModelPath, nil
}

func (c *Client) CloseContext(ctx context.Context, h stt.Handle, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "CloseContext", &CloseContextRequest{Handle: uint64(h)}, new(CloseContextResponse), opts)
}

func (c *Client) Transcribe(ctx context.Context, h stt.Handle, samples []float32, opts ...grpc.CallOption) (*TranscribeResponse, error) {
	return c.TranscribeRaw(ctx, &TranscribeRequest{Handle: uint64(h), Samples: samples}, opts...)
}

// TranscribePCM16 sends little-endian 16-bit PCM for server-side conversion.
func (c *Client) TranscribePCM16(ctx context.Context, h stt.Handle, pcm []byte, opts ...grpc.CallOption) (*TranscribeResponse, error) {
	return c.TranscribeRaw(ctx, &TranscribeRequest{Handle: uint64(h), PCM16: pcm}, opts...)
}

// TranscribeRaw sends req unchanged.
func (c *Client) TranscribeRaw(ctx context.Context, req *TranscribeRequest, opts ...grpc.CallOption) (*TranscribeResponse, error) {
	out := new(TranscribeResponse)
	if err := c.invoke(ctx, "Transcribe", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
