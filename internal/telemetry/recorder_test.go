package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderSnapshot(t *testing.T) {
	recorder := NewRecorder(discardLogger())
	if snapshot := recorder.Snapshot(); snapshot.TotalContextsOpened != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}

	recorder.RecordConfigure("stub", "en", 2)
	recorder.RecordContextOpened("stub", "/models/base.bin", 3*time.Millisecond)
	recorder.RecordLoadFailure("stub", "/missing.bin", errors.New("boom"))

	pass := recorder.StartTranscription("stub", 1, 16000)
	if pass == nil {
		t.Fatalf("expected transcription metrics")
	}
	pass.RecordTranscript(2, "hello world")
	time.Sleep(2 * time.Millisecond)
	pass.Finish(nil)

	recorder.RecordContextClosed("stub")

	snapshot := recorder.Snapshot()
	if snapshot.TotalConfigures != 1 {
		t.Fatalf("unexpected TotalConfigures: %d", snapshot.TotalConfigures)
	}
	if snapshot.TotalContextsOpened != 1 || snapshot.TotalContextsClosed != 1 {
		t.Fatalf("unexpected context totals: %+v", snapshot)
	}
	if snapshot.ActiveContexts != 0 {
		t.Fatalf("expected zero active contexts, got %d", snapshot.ActiveContexts)
	}
	if snapshot.TotalLoadFailures != 1 {
		t.Fatalf("unexpected TotalLoadFailures: %d", snapshot.TotalLoadFailures)
	}
	if snapshot.TotalTranscriptions != 1 {
		t.Fatalf("unexpected TotalTranscriptions: %d", snapshot.TotalTranscriptions)
	}
	if snapshot.TotalSamples != 16000 {
		t.Fatalf("unexpected TotalSamples: %d", snapshot.TotalSamples)
	}
	if snapshot.TotalSegments != 2 {
		t.Fatalf("unexpected TotalSegments: %d", snapshot.TotalSegments)
	}
	if snapshot.TotalTranscriptRunes != 11 {
		t.Fatalf("unexpected TotalTranscriptRunes: %d", snapshot.TotalTranscriptRunes)
	}

	pass.Finish(nil)
	if again := recorder.Snapshot(); again.TotalTranscriptions != 1 {
		t.Fatalf("second Finish changed totals: %+v", again)
	}
}

func TestTranscriptionFinishWithError(t *testing.T) {
	recorder := NewRecorder(discardLogger())
	pass := recorder.StartTranscription("stub", 7, 320)
	pass.RecordTranscript(1, "ignored")
	pass.Finish(io.ErrUnexpectedEOF)

	snapshot := recorder.Snapshot()
	if snapshot.TotalTranscriptions != 1 {
		t.Fatalf("unexpected transcriptions: %d", snapshot.TotalTranscriptions)
	}
	if snapshot.TotalFailedPasses != 1 {
		t.Fatalf("unexpected failed passes: %d", snapshot.TotalFailedPasses)
	}
	if snapshot.TotalSegments != 0 {
		t.Fatalf("failed pass must not count segments, got %d", snapshot.TotalSegments)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var recorder *Recorder
	recorder.RecordConfigure("stub", "en", 1)
	recorder.RecordContextOpened("stub", "x", 0)
	recorder.RecordContextClosed("stub")
	pass := recorder.StartTranscription("stub", 1, 1)
	pass.RecordTranscript(1, "x")
	pass.Finish(nil)
	if snapshot := recorder.Snapshot(); snapshot != (Snapshot{}) {
		t.Fatalf("expected zero snapshot, got %+v", snapshot)
	}
}

func TestRecorderExportsInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	recorder := NewRecorder(discardLogger(), WithMeter(provider.Meter("test")))
	recorder.RecordContextOpened("stub", "/m.bin", time.Millisecond)
	pass := recorder.StartTranscription("stub", 1, 480)
	pass.Finish(nil)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	found := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			found[m.Name] = true
		}
	}
	for _, name := range []string{
		metricPrefix + "contexts.active",
		metricPrefix + "transcriptions",
		metricPrefix + "samples",
		metricPrefix + "inference.duration",
	} {
		if !found[name] {
			t.Fatalf("metric %q not exported (got %v)", name, found)
		}
	}
}
