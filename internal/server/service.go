package server

import (
	"context"

	"google.golang.org/grpc"

	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "whisperbridge.v1.Transcriber"

type ConfigureRequest struct {
	Config stt.Config `json:"config"`
}

type ConfigureResponse struct{}

type OpenContextRequest struct {
	// ModelPath may be empty to open the server's default model.
	ModelPath string `json:"model_path,omitempty"`
}

type OpenContextResponse struct {
	Handle    uint64 `json:"handle"`
	ModelPath string `json:"model_path"`
}

type CloseContextRequest struct {
	Handle uint64 `json:"handle"`
}

type CloseContextResponse struct{}

// TranscribeRequest carries audio either as float samples or as
// little-endian 16-bit PCM, never both.
type TranscribeRequest struct {
	Handle  uint64    `json:"handle"`
	Samples []float32 `json:"samples,omitempty"`
	PCM16   []byte    `json:"pcm16,omitempty"`
}

type TranscribeResponse struct {
	Text       string            `json:"text"`
	Samples    int               `json:"samples"`
	AudioMs    int64             `json:"audio_ms"`
	DurationMs int64             `json:"duration_ms"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// TranscriberServer is implemented by Server.
type TranscriberServer interface {
	Configure(context.Context, *ConfigureRequest) (*ConfigureResponse, error)
	OpenContext(context.Context, *OpenContextRequest) (*OpenContextResponse, error)
	CloseContext(context.Context, *CloseContextRequest) (*CloseContextResponse, error)
	Transcribe(context.Context, *TranscribeRequest) (*TranscribeResponse, error)
}

// RegisterTranscriberServer attaches srv to s.
func RegisterTranscriberServer(s grpc.ServiceRegistrar, srv TranscriberServer) {
	s.RegisterService(&Transcriber_ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unaryHandler adapts a typed method to grpc.MethodHandler.
func unaryHandler[Req, Resp any](name string, call func(TranscriberServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TranscriberServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TranscriberServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Transcriber_ServiceDesc describes the service for grpc.Server.
var Transcriber_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TranscriberServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Configure",
			Handler:    unaryHandler("Configure", TranscriberServer.Configure),
		},
		{
			MethodName: "OpenContext",
			Handler:    unaryHandler("OpenContext", TranscriberServer.OpenContext),
		},
		{
			MethodName: "CloseContext",
			Handler:    unaryHandler("CloseContext", TranscriberServer.CloseContext),
		},
		{
			MethodName: "Transcribe",
			Handler:    unaryHandler("Transcribe", TranscriberServer.Transcribe),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "whisperbridge/v1/transcriber.json",
}
