package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/stt-whisper-bridge/internal/adapterinfo"
	"github.com/nupi-ai/stt-whisper-bridge/internal/audio"
	"github.com/nupi-ai/stt-whisper-bridge/internal/config"
	"github.com/nupi-ai/stt-whisper-bridge/internal/engine"
	"github.com/nupi-ai/stt-whisper-bridge/internal/logging"
	"github.com/nupi-ai/stt-whisper-bridge/internal/models"
	"github.com/nupi-ai/stt-whisper-bridge/internal/server"
	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "sttctl",
	Short:        "Run whisper transcriptions locally or against a bridge server",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(
		transcribeCmd(),
		remoteCmd(),
		wav2csvCmd(),
		modelsCmd(),
		versionCmd(),
	)
}

// decodeFlags holds the per-pass parameters shared by transcribe and remote.
type decodeFlags struct {
	language   string
	threads    int
	offsetMs   int
	translate  bool
	timestamps bool
	special    bool
	progress   bool
	keepCtx    bool
	single     bool
}

func (f *decodeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "spoken language, or \"auto\" (default from configuration)")
	cmd.Flags().IntVarP(&f.threads, "threads", "t", 0, "engine threads (0 uses configuration)")
	cmd.Flags().IntVar(&f.offsetMs, "offset-ms", 0, "skip the first N milliseconds of audio")
	cmd.Flags().BoolVar(&f.translate, "translate", false, "translate the transcript to English")
	cmd.Flags().BoolVar(&f.timestamps, "timestamps", true, "include segment timestamps in engine output")
	cmd.Flags().BoolVar(&f.special, "special", false, "keep special tokens in the transcript")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "let the engine print progress and timings")
	cmd.Flags().BoolVar(&f.keepCtx, "keep-context", false, "reuse previous text as the decoder prompt")
	cmd.Flags().BoolVar(&f.single, "single-segment", false, "force a single output segment")
}

func (f *decodeFlags) config(cfg config.Config) stt.Config {
	language := f.language
	if language == "" {
		language = cfg.Language
	}
	threads := f.threads
	if threads == 0 {
		threads = cfg.ThreadCount()
	}
	return stt.Config{
		PrintProgress:   f.progress,
		PrintTimestamps: f.timestamps,
		PrintSpecial:    f.special,
		Translate:       f.translate,
		Language:        language,
		Threads:         threads,
		OffsetMs:        f.offsetMs,
		NoContext:       !f.keepCtx,
		SingleSegment:   f.single,
	}
}

func transcribeCmd() *cobra.Command {
	var (
		flags     decodeFlags
		modelPath string
		backend   string
		repeat    int
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio.wav|audio.csv>",
		Short: "Transcribe an audio file in-process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Loader{}.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if backend != "" {
				cfg.Backend = backend
				cfg.UseStubEngine = false
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if modelPath != "" {
				cfg.ModelPath = modelPath
			}
			if repeat < 1 {
				return fmt.Errorf("repeat must be >= 1, got %d", repeat)
			}

			samples, err := loadAudio(args[0])
			if err != nil {
				return err
			}

			logger := logging.New(os.Stderr, cfg.LogLevel)
			manager, err := models.NewManager(cfg.DataDir, logger)
			if err != nil {
				return fmt.Errorf("failed to initialise model manager: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, resolved, err := engine.New(cfg, manager, logger)
			if svc == nil {
				return fmt.Errorf("failed to initialise engine: %w", err)
			}
			defer svc.Close()
			if err != nil {
				logger.Warn("engine initialised with warnings", "error", err)
			}

			if err := svc.Configure(flags.config(cfg)); err != nil {
				return err
			}
			h, err := svc.OpenContext(resolved)
			if err != nil {
				return err
			}
			defer svc.CloseContext(h)

			for i := 0; i < repeat; i++ {
				start := time.Now()
				text, err := svc.Transcribe(ctx, h, samples)
				if err != nil {
					return err
				}
				logger.Info("transcription finished",
					"pass", i+1,
					"backend", svc.Backend(),
					"samples", len(samples),
					"audio_ms", audio.Duration(len(samples)),
					"duration_ms", time.Since(start).Milliseconds(),
				)
				fmt.Fprintln(cmd.OutOrStdout(), text)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "model file (default resolved from configuration)")
	cmd.Flags().StringVar(&backend, "backend", "", "engine backend: native, gowhisper, exec or stub")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "run the pass N times on the same context")

	return cmd
}

func remoteCmd() *cobra.Command {
	var (
		flags     decodeFlags
		addr      string
		modelPath string
		timeout   time.Duration
		maxBytes  int
	)

	cmd := &cobra.Command{
		Use:   "remote <audio.wav|audio.csv>",
		Short: "Transcribe an audio file through a running bridge server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := loadAudio(args[0])
			if err != nil {
				return err
			}

			conn, err := server.Dial(addr, server.WithMaxMessageBytes(maxBytes))
			if err != nil {
				return fmt.Errorf("failed to dial %s: %w", addr, err)
			}
			defer conn.Close()
			client := server.NewClient(conn)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := client.Configure(ctx, flags.config(config.Config{Language: stt.DefaultLanguage})); err != nil {
				return fmt.Errorf("configure: %w", err)
			}
			h, path, err := client.OpenContext(ctx, modelPath)
			if err != nil {
				return fmt.Errorf("open context: %w", err)
			}
			defer client.CloseContext(context.Background(), h)

			resp, err := client.Transcribe(ctx, h, samples)
			if err != nil {
				return fmt.Errorf("transcribe: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "model:", path, "duration_ms:", resp.DurationMs)
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", config.DefaultListenAddr, "bridge server address")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "model path on the server (default: server's model)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall request timeout")
	cmd.Flags().IntVar(&maxBytes, "max-message-bytes", config.DefaultMaxMessageBytes, "gRPC message size limit")

	return cmd
}

func wav2csvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wav2csv <in.wav> <out.csv>",
		Short: "Convert a 16 kHz mono WAV file into a comma separated sample file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := audio.ReadWAVFile(args[0])
			if err != nil {
				return err
			}
			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			if err := audio.WriteCSV(out, samples); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d samples to %s\n", len(samples), args[1])
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known model variants and whether they are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Loader{}.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			manifest, err := models.DefaultManifest()
			if err != nil {
				return err
			}
			manager, err := models.NewManager(cfg.DataDir, logging.New(os.Stderr, cfg.LogLevel))
			if err != nil {
				return err
			}
			for _, name := range manifest.Names() {
				v := manifest.Variants[name]
				state := "missing"
				if path, err := manager.Resolve(name, ""); err == nil {
					state = path
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-28s %s\n", name, v.Filename, state)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bridge version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), adapterinfo.Info.Slug, adapterinfo.Version())
		},
	}
}

func loadAudio(path string) ([]float32, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return audio.ReadWAVFile(path)
	case ".csv", ".txt":
		return audio.ReadCSVFile(path)
	default:
		return nil, fmt.Errorf("unsupported audio file %q: want .wav or .csv", path)
	}
}
