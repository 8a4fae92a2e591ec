package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nupi-ai/stt-whisper-bridge/internal/adapterinfo"
	"github.com/nupi-ai/stt-whisper-bridge/internal/audio"
	"github.com/nupi-ai/stt-whisper-bridge/internal/config"
	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

// Server exposes an stt.Service over gRPC.
type Server struct {
	cfg          config.Config
	log          *slog.Logger
	svc          stt.Service
	defaultModel string

	// mu serialises calls unless cfg.Concurrent is set.
	mu sync.Mutex
}

var _ TranscriberServer = (*Server)(nil)

// New returns a Server. defaultModel is opened when OpenContext names no
// path.
func New(cfg config.Config, logger *slog.Logger, svc stt.Service, defaultModel string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if svc == nil {
		panic("server: service must not be nil")
	}
	return &Server{
		cfg: cfg,
		log: logger.With(
			"component", "server",
			"backend", svc.Backend(),
			"model_variant", cfg.ModelVariant,
		),
		svc:          svc,
		defaultModel: defaultModel,
	}
}

// ServerOptions returns the grpc.Server options implied by cfg. The default
// 4 MiB receive limit would reject float audio longer than about 24 seconds.
func ServerOptions(cfg config.Config) []grpc.ServerOption {
	limit := cfg.MaxMessageBytes
	if limit <= 0 {
		limit = config.DefaultMaxMessageBytes
	}
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(limit),
		grpc.MaxSendMsgSize(limit),
	}
}

func (s *Server) lock() func() {
	if s.cfg.Concurrent {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Server) Configure(ctx context.Context, req *ConfigureRequest) (*ConfigureResponse, error) {
	defer s.lock()()
	if err := s.svc.Configure(req.Config); err != nil {
		s.log.Warn("configure rejected", "error", err)
		return nil, toStatus(err)
	}
	s.log.Info("transcription parameters configured",
		"language", req.Config.Language,
		"threads", req.Config.Threads,
		"translate", req.Config.Translate,
	)
	return &ConfigureResponse{}, nil
}

func (s *Server) OpenContext(ctx context.Context, req *OpenContextRequest) (*OpenContextResponse, error) {
	defer s.lock()()
	path := req.ModelPath
	if path == "" {
		path = s.defaultModel
	}
	h, err := s.svc.OpenContext(path)
	if err != nil {
		s.log.Error("open context failed", "model_path", path, "error", err)
		return nil, toStatus(err)
	}
	s.log.Info("context opened", "handle", h.String(), "model_path", path)
	return &OpenContextResponse{Handle: uint64(h), ModelPath: path}, nil
}

func (s *Server) CloseContext(ctx context.Context, req *CloseContextRequest) (*CloseContextResponse, error) {
	defer s.lock()()
	h := stt.Handle(req.Handle)
	if err := s.svc.CloseContext(h); err != nil {
		return nil, toStatus(err)
	}
	s.log.Info("context closed", "handle", h.String())
	return &CloseContextResponse{}, nil
}

func (s *Server) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResponse, error) {
	if len(req.Samples) > 0 && len(req.PCM16) > 0 {
		return nil, status.Error(codes.InvalidArgument, "samples and pcm16 are mutually exclusive")
	}
	samples := req.Samples
	if len(req.PCM16) > 0 {
		samples = audio.PCM16ToFloat32(req.PCM16)
	}

	defer s.lock()()
	start := time.Now()
	h := stt.Handle(req.Handle)
	text, err := s.svc.Transcribe(ctx, h, samples)
	if err != nil {
		s.log.Error("transcription failed", "handle", h.String(), "samples", len(samples), "error", err)
		return nil, toStatus(err)
	}

	language := ""
	if cfg, ok := s.svc.Config(); ok {
		language = cfg.Language
	}
	return &TranscribeResponse{
		Text:       text,
		Samples:    len(samples),
		AudioMs:    audio.Duration(len(samples)),
		DurationMs: time.Since(start).Milliseconds(),
		Metadata:   adapterinfo.TranscriptMetadata(s.svc.Backend(), language),
	}, nil
}

// toStatus maps service errors onto gRPC codes.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, stt.ErrLoad), errors.Is(err, stt.ErrNotConfigured):
		code = codes.FailedPrecondition
	case errors.Is(err, stt.ErrInvalidHandle):
		code = codes.NotFound
	case errors.Is(err, stt.ErrInference):
		code = codes.Internal
	case errors.Is(err, stt.ErrInvalidConfig):
		code = codes.InvalidArgument
	case errors.Is(err, stt.ErrClosed):
		code = codes.Unavailable
	default:
		code = codes.Unknown
	}
	return status.Error(code, err.Error())
}
