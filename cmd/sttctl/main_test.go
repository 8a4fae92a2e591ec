package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nupi-ai/stt-whisper-bridge/internal/audio"
	"github.com/nupi-ai/stt-whisper-bridge/internal/config"
)

func TestDecodeFlagsFallBackToConfiguration(t *testing.T) {
	threads := 6
	cfg := config.Config{Language: "de", Threads: &threads}

	var f decodeFlags
	f.timestamps = true
	got := f.config(cfg)
	if got.Language != "de" || got.Threads != 6 {
		t.Fatalf("config() = %+v, want language de and 6 threads", got)
	}
	if !got.NoContext || !got.PrintTimestamps {
		t.Fatalf("config() = %+v, want no-context and timestamps on", got)
	}

	f.language = "auto"
	f.threads = 2
	f.keepCtx = true
	got = f.config(cfg)
	if got.Language != "auto" || got.Threads != 2 || got.NoContext {
		t.Fatalf("explicit flags not applied: %+v", got)
	}
}

func TestWAV2CSV(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.csv")
	if err := audio.WriteWAVFile(in, []float32{0, 0.5, -0.5}); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}

	cmd := wav2csvCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{in, out})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(stdout.String(), "wrote 3 samples") {
		t.Fatalf("unexpected output %q", stdout.String())
	}

	samples, err := loadAudio(out)
	if err != nil {
		t.Fatalf("loadAudio: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
}

func TestLoadAudioRejectsUnknownExtension(t *testing.T) {
	if _, err := loadAudio("clip.mp3"); err == nil {
		t.Fatal("expected error for .mp3 input")
	}
}
