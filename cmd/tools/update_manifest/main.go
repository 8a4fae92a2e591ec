// Command update_manifest refreshes the sha256 and size of every variant in a
// model manifest by downloading each artefact once.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nupi-ai/stt-whisper-bridge/internal/logging"
	"github.com/nupi-ai/stt-whisper-bridge/internal/models"
)

func main() {
	manifestPath := flag.String("manifest", "internal/models/embedded_manifest.yaml", "Path to manifest YAML to update")
	timeout := flag.Duration("timeout", 10*time.Minute, "Per-download timeout")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger := logging.New(os.Stderr, *logLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: *timeout}
	if err := updateManifest(ctx, *manifestPath, client, logger); err != nil {
		logger.Error("update manifest failed", "manifest", *manifestPath, "error", err)
		os.Exit(1)
	}
	logger.Info("manifest updated", "manifest", *manifestPath)
}

// updateManifest rewrites the manifest at path with fresh checksums. A
// variant whose download fails keeps its previous values.
func updateManifest(ctx context.Context, path string, client *http.Client, logger *slog.Logger) error {
	manifest, err := readManifest(path)
	if err != nil {
		return err
	}

	for _, name := range manifest.Names() {
		variant := manifest.Variants[name]
		if variant.URL == "" {
			logger.Info("skipping variant without URL", "variant", name)
			continue
		}
		logger.Info("hashing variant", "variant", name, "url", variant.URL)
		sum, size, err := hashRemote(ctx, client, variant.URL)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Warn("variant not updated", "variant", name, "error", err)
			continue
		}
		variant.SHA256 = sum
		variant.SizeBytes = size
		manifest.Variants[name] = variant
		logger.Info("variant hashed", "variant", name, "size_bytes", size, "sha256", sum)
	}

	return writeManifestFile(path, manifest)
}

func readManifest(path string) (models.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return models.LoadManifest(f)
}

func hashRemote(ctx context.Context, client *http.Client, url string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	hasher := sha256.New()
	size, err := io.Copy(hasher, resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read body: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// writeManifestFile replaces path atomically so a failed write never leaves
// a truncated manifest behind.
func writeManifestFile(path string, m models.Manifest) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*.yaml")
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	if err := models.WriteManifest(tmp, m); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
