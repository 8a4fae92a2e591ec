package models

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestDefaultManifestHasBaseVariant(t *testing.T) {
	m, err := DefaultManifest()
	if err != nil {
		t.Fatalf("DefaultManifest: %v", err)
	}
	base, ok := m.Variants["base"]
	if !ok {
		t.Fatalf("base variant missing; have %v", m.Names())
	}
	if base.Filename != "ggml-base.en.bin" {
		t.Fatalf("unexpected base filename %q", base.Filename)
	}
}

func TestManifestRoundTripsThroughYAML(t *testing.T) {
	in := Manifest{Variants: map[string]Variant{
		"x": {DisplayName: "X", Filename: "x.bin", URL: "http://example/x.bin", SHA256: "abc", SizeBytes: 3},
	}}
	var buf bytes.Buffer
	if err := WriteManifest(&buf, in); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	out, err := LoadManifest(&buf)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if out.Variants["x"] != in.Variants["x"] {
		t.Fatalf("round trip mismatch: %+v", out.Variants["x"])
	}
}

func TestLoadManifestRejectsMissingFilename(t *testing.T) {
	_, err := LoadManifest(bytes.NewReader([]byte("variants:\n  broken:\n    url: http://x\n")))
	if err == nil {
		t.Fatal("expected error for variant without filename")
	}
}

func TestResolve(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Resolve("base", ""); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("Resolve missing = %v, want ErrModelNotFound", err)
	}
	if _, err := m.Resolve("nope", ""); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("Resolve unknown = %v, want ErrUnknownVariant", err)
	}

	path := filepath.Join(m.ModelsDir(), "ggml-base.en.bin")
	if err := os.WriteFile(path, []byte("model"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := m.Resolve("base", "")
	if err != nil || got != path {
		t.Fatalf("Resolve = %q, %v; want %q", got, err, path)
	}

	override := filepath.Join(t.TempDir(), "custom.bin")
	if _, err := m.Resolve("base", override); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("Resolve missing override = %v", err)
	}
	if err := os.WriteFile(override, []byte("custom"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got, err := m.Resolve("base", override); err != nil || got != override {
		t.Fatalf("Resolve override = %q, %v", got, err)
	}
}

func TestEnsureVariantDownloadsAndVerifies(t *testing.T) {
	payload := []byte("ggml model bytes")
	sum := sha256.Sum256(payload)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	m := newTestManager(t)
	manifest := Manifest{Variants: map[string]Variant{
		"tiny": {
			Filename:  "ggml-tiny.bin",
			URL:       srv.URL + "/ggml-tiny.bin",
			SHA256:    hex.EncodeToString(sum[:]),
			SizeBytes: int64(len(payload)),
		},
	}}

	path, err := m.EnsureVariant(context.Background(), "tiny", EnsureOptions{Manifest: manifest, Client: srv.Client()})
	if err != nil {
		t.Fatalf("EnsureVariant: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(data, payload) {
		t.Fatalf("downloaded content mismatch: %q, %v", data, err)
	}

	if _, err := m.EnsureVariant(context.Background(), "tiny", EnsureOptions{Manifest: manifest, Client: srv.Client()}); err != nil {
		t.Fatalf("second EnsureVariant: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single download, got %d", hits.Load())
	}
}

func TestEnsureVariantRejectsChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	m := newTestManager(t)
	manifest := Manifest{Variants: map[string]Variant{
		"tiny": {Filename: "ggml-tiny.bin", URL: srv.URL, SHA256: "00"},
	}}
	_, err := m.EnsureVariant(context.Background(), "tiny", EnsureOptions{Manifest: manifest, Client: srv.Client()})
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("EnsureVariant = %v, want ErrChecksumMismatch", err)
	}
	if _, statErr := os.Stat(filepath.Join(m.ModelsDir(), "ggml-tiny.bin")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("rejected download left a file behind: %v", statErr)
	}
}

func TestEnsureVariantHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	m := newTestManager(t)
	manifest := Manifest{Variants: map[string]Variant{
		"tiny": {Filename: "ggml-tiny.bin", URL: srv.URL},
	}}
	if _, err := m.EnsureVariant(context.Background(), "tiny", EnsureOptions{Manifest: manifest, Client: srv.Client()}); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestEnsureVariantWithoutURL(t *testing.T) {
	m := newTestManager(t)
	manifest := Manifest{Variants: map[string]Variant{"local": {Filename: "local.bin"}}}
	if _, err := m.EnsureVariant(context.Background(), "local", EnsureOptions{Manifest: manifest}); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("EnsureVariant = %v, want ErrModelNotFound", err)
	}
	if _, err := m.EnsureVariant(context.Background(), "other", EnsureOptions{Manifest: manifest}); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("EnsureVariant = %v, want ErrUnknownVariant", err)
	}
}
