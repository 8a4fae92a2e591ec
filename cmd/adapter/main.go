package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nupi-ai/stt-whisper-bridge/internal/adapterinfo"
	"github.com/nupi-ai/stt-whisper-bridge/internal/config"
	"github.com/nupi-ai/stt-whisper-bridge/internal/engine"
	"github.com/nupi-ai/stt-whisper-bridge/internal/logging"
	"github.com/nupi-ai/stt-whisper-bridge/internal/models"
	"github.com/nupi-ai/stt-whisper-bridge/internal/server"
	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
	"github.com/nupi-ai/stt-whisper-bridge/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Loader{}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	logger.Info("starting bridge",
		"version", adapterinfo.Version(),
		"listen_addr", cfg.ListenAddr,
		"backend", cfg.Backend,
		"model_variant", cfg.ModelVariant,
		"data_dir", cfg.DataDir,
	)

	shutdownTelemetry, metricsHandler, err := telemetry.Setup(ctx, telemetry.Settings{
		ServiceName:    adapterinfo.Info.Slug,
		ServiceVersion: adapterinfo.Version(),
		Backend:        cfg.Backend,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		OTLPInsecure:   cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	recorder := telemetry.NewRecorder(logger)

	manager, err := models.NewManager(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to initialise model manager", "error", err)
		os.Exit(1)
	}

	service, modelPath, engineErr := engine.New(cfg, manager, logger, stt.WithRecorder(recorder))
	if service == nil {
		logger.Error("failed to initialise engine", "error", engineErr)
		os.Exit(1)
	}
	if engineErr != nil {
		logger.Warn("engine initialised with warnings", "error", engineErr)
	}
	if modelPath != "" {
		logger.Info("resolved model path", "path", modelPath)
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Warn("failed to close service", "error", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to bind listener", "error", err)
		os.Exit(1)
	}
	defer lis.Close()

	grpcServer := grpc.NewServer(server.ServerOptions(cfg)...)
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)

	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(server.ServiceName, healthgrpc.HealthCheckResponse_NOT_SERVING)

	server.RegisterTranscriberServer(grpcServer, server.New(cfg, logger, service, modelPath))

	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.ServiceName, healthgrpc.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		logger.Info("shutdown requested, stopping gRPC server")
		healthServer.SetServingStatus(server.ServiceName, healthgrpc.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)

		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = metricsServer.Shutdown(shutdownCtx)
			cancel()
		}

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			logger.Warn("graceful stop timed out, forcing stop")
			grpcServer.Stop()
		}
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Error("gRPC server terminated with error", "error", err)
		os.Exit(1)
	}

	if snapshot := recorder.Snapshot(); snapshot.TotalContextsOpened > 0 || snapshot.TotalTranscriptions > 0 {
		logger.Info("telemetry totals",
			"total_configures", snapshot.TotalConfigures,
			"total_contexts_opened", snapshot.TotalContextsOpened,
			"total_contexts_closed", snapshot.TotalContextsClosed,
			"total_load_failures", snapshot.TotalLoadFailures,
			"total_transcriptions", snapshot.TotalTranscriptions,
			"total_failed_passes", snapshot.TotalFailedPasses,
			"total_samples", snapshot.TotalSamples,
			"total_segments", snapshot.TotalSegments,
			"total_inference_ms", snapshot.TotalInferenceMillis,
		)
	}

	logger.Info("bridge stopped")
}
