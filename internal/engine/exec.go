package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/nupi-ai/stt-whisper-bridge/internal/audio"
	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

// waitDelay bounds how long output pipes may stay open after the command
// is killed on cancellation.
const waitDelay = 2 * time.Second

// ExecBackend runs a whisper-cli compatible binary once per transcription.
// Audio is handed over as a temporary 16 kHz mono WAV file and every
// non-empty stdout line is read back as one segment.
type ExecBackend struct {
	log     *slog.Logger
	command []string
	tempDir string

	mu         sync.RWMutex
	cfg        stt.Config
	configured bool
}

// ExecContext records the model the command is pointed at.
type ExecContext struct {
	ModelPath string
}

// NewExecBackend parses command with shell quoting rules. tempDir may be
// empty for the system default.
func NewExecBackend(logger *slog.Logger, command, tempDir string) (*ExecBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("engine: parse exec command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("engine: exec command is empty")
	}
	return &ExecBackend{
		log:     logger.With("component", "engine.exec", "command", args[0]),
		command: args,
		tempDir: tempDir,
	}, nil
}

func (b *ExecBackend) Name() string { return BackendExec }

func (b *ExecBackend) Configure(cfg stt.Config) error {
	b.mu.Lock()
	b.cfg = cfg
	b.configured = true
	b.mu.Unlock()
	return nil
}

func (b *ExecBackend) Open(modelPath string) (*ExecContext, error) {
	f, err := os.Open(modelPath)
	if err != nil {
		return nil, err
	}
	_ = f.Close()
	return &ExecContext{ModelPath: modelPath}, nil
}

func (b *ExecBackend) Close(*ExecContext) error { return nil }

func (b *ExecBackend) Transcribe(ctx context.Context, c *ExecContext, samples []float32) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wavPath, err := b.writeInput(samples)
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)

	args := b.args(c.ModelPath, wavPath)
	cmd := exec.CommandContext(ctx, b.command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("engine: %s failed: %w: %s", b.command[0], err, strings.TrimSpace(stderr.String()))
	}

	var out stt.Transcript
	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("engine: read %s output: %w", b.command[0], err)
	}
	b.log.Debug("exec inference complete", "samples", len(samples), "segments", len(out))
	return out, nil
}

func (b *ExecBackend) writeInput(samples []float32) (string, error) {
	f, err := os.CreateTemp(b.tempDir, "whisper-bridge-*.wav")
	if err != nil {
		return "", fmt.Errorf("engine: create input file: %w", err)
	}
	if err := audio.EncodeWAV(f, samples); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("engine: close input file: %w", err)
	}
	return f.Name(), nil
}

// args maps the active configuration onto whisper-cli flags. Without a
// configuration only model, input and the output switches are passed so the
// binary's own defaults apply. -nt is always set because stdout lines are the
// segment texts; PrintTimestamps and SingleSegment have no effect here.
func (b *ExecBackend) args(modelPath, wavPath string) []string {
	b.mu.RLock()
	cfg, configured := b.cfg, b.configured
	b.mu.RUnlock()

	args := append([]string{}, b.command[1:]...)
	args = append(args, "-m", modelPath, "-f", wavPath, "-nt")
	if !configured {
		return append(args, "-np")
	}

	args = append(args, "-l", cfg.Language)
	if cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(cfg.Threads))
	}
	if cfg.OffsetMs > 0 {
		args = append(args, "-ot", strconv.Itoa(cfg.OffsetMs))
	}
	if cfg.Translate {
		args = append(args, "-tr")
	}
	if cfg.PrintSpecial {
		args = append(args, "-ps")
	}
	if cfg.NoContext {
		args = append(args, "-mc", "0")
	}
	if !cfg.PrintProgress {
		args = append(args, "-np")
	}
	return args
}
