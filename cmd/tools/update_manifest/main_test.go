package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nupi-ai/stt-whisper-bridge/internal/models"
)

func TestUpdateManifestRecordsChecksums(t *testing.T) {
	payload := []byte("ggml model bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tiny.bin" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "manifest.yaml")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	err = models.WriteManifest(f, models.Manifest{Variants: map[string]models.Variant{
		"tiny":    {Filename: "ggml-tiny.bin", URL: srv.URL + "/tiny.bin"},
		"missing": {Filename: "ggml-missing.bin", URL: srv.URL + "/missing.bin", SHA256: "keep"},
		"local":   {Filename: "ggml-local.bin"},
	}})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := updateManifest(context.Background(), path, srv.Client(), logger); err != nil {
		t.Fatalf("updateManifest: %v", err)
	}

	got, err := readManifest(path)
	if err != nil {
		t.Fatalf("readManifest: %v", err)
	}
	sum := sha256.Sum256(payload)
	tiny := got.Variants["tiny"]
	if tiny.SHA256 != hex.EncodeToString(sum[:]) || tiny.SizeBytes != int64(len(payload)) {
		t.Fatalf("tiny not updated: %+v", tiny)
	}
	if got.Variants["missing"].SHA256 != "keep" {
		t.Fatalf("failed download overwrote checksum: %+v", got.Variants["missing"])
	}
	if len(got.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(got.Variants))
	}

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".manifest-*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("temporary files left behind: %v", leftovers)
	}
}

func TestWriteManifestFileReportsUnwritableDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "manifest.yaml")
	if err := writeManifestFile(path, models.Manifest{}); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
