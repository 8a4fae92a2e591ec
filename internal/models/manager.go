package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrModelNotFound indicates that no model file exists for the request.
	ErrModelNotFound = errors.New("models: model not found")
	// ErrUnknownVariant indicates that the manifest has no such variant.
	ErrUnknownVariant = errors.New("models: unknown variant")
	// ErrChecksumMismatch indicates a downloaded file failed verification.
	ErrChecksumMismatch = errors.New("models: checksum mismatch")
)

// Manager locates model files under <dataDir>/models and downloads missing
// variants on request.
type Manager struct {
	dir    string
	log    *slog.Logger
	client *http.Client
}

// EnsureOptions controls EnsureVariant.
type EnsureOptions struct {
	Manifest Manifest
	// Override is an explicit model path that bypasses the manifest.
	Override string
	// Client replaces the default HTTP client.
	Client *http.Client
}

// NewManager creates the models directory if needed.
func NewManager(dataDir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(dataDir) == "" {
		return nil, errors.New("models: data directory required")
	}
	dir := filepath.Join(dataDir, "models")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("models: create %s: %w", dir, err)
	}
	return &Manager{
		dir:    dir,
		log:    logger.With("component", "models"),
		client: &http.Client{Timeout: 30 * time.Minute},
	}, nil
}

// ModelsDir returns the directory holding downloaded models.
func (m *Manager) ModelsDir() string { return m.dir }

// Resolve returns the on-disk path for variant without downloading. An
// override path wins over the manifest and must exist.
func (m *Manager) Resolve(variant, override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return statModel(override)
	}
	manifest, err := DefaultManifest()
	if err != nil {
		return "", err
	}
	v, ok := manifest.Variants[variant]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	return statModel(filepath.Join(m.dir, v.Filename))
}

// EnsureVariant returns the path of variant, downloading it when absent. A
// file already present with the expected size is reused as is.
func (m *Manager) EnsureVariant(ctx context.Context, variant string, opts EnsureOptions) (string, error) {
	if override := strings.TrimSpace(opts.Override); override != "" {
		return statModel(override)
	}
	v, ok := opts.Manifest.Variants[variant]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}

	target := filepath.Join(m.dir, v.Filename)
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		if v.SizeBytes == 0 || info.Size() == v.SizeBytes {
			m.log.Debug("model present", "variant", variant, "path", target)
			return target, nil
		}
		m.log.Warn("model size mismatch, downloading again",
			"variant", variant,
			"path", target,
			"size", info.Size(),
			"expected", v.SizeBytes,
		)
	}

	if v.URL == "" {
		return "", fmt.Errorf("%w: %s (variant %q has no download URL)", ErrModelNotFound, target, variant)
	}

	client := opts.Client
	if client == nil {
		client = m.client
	}
	if err := m.download(ctx, client, v, target); err != nil {
		return "", err
	}
	return target, nil
}

func (m *Manager) download(ctx context.Context, client *http.Client, v Variant, target string) error {
	start := time.Now()
	m.log.Info("downloading model", "url", v.URL, "path", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.URL, nil)
	if err != nil {
		return fmt.Errorf("models: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("models: download %s: %w", v.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("models: download %s: unexpected status %s", v.URL, resp.Status)
	}

	tmp, err := os.CreateTemp(m.dir, "."+v.Filename+".*.part")
	if err != nil {
		return fmt.Errorf("models: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("models: write %s: %w", target, err)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if v.SHA256 != "" && !strings.EqualFold(sum, v.SHA256) {
		return fmt.Errorf("%w: %s sha256 %s, want %s", ErrChecksumMismatch, v.Filename, sum, v.SHA256)
	}
	if v.SizeBytes != 0 && written != v.SizeBytes {
		return fmt.Errorf("%w: %s size %d, want %d", ErrChecksumMismatch, v.Filename, written, v.SizeBytes)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("models: install %s: %w", target, err)
	}
	m.log.Info("model downloaded",
		"path", target,
		"bytes", written,
		"sha256", sum,
		"took", time.Since(start),
	)
	return nil
}

func statModel(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return "", fmt.Errorf("models: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrModelNotFound, path)
	}
	return path, nil
}
