package telemetry

import (
	"errors"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const metricPrefix = "whisper_bridge."

type instruments struct {
	configures       metric.Int64Counter
	activeContexts   metric.Int64UpDownCounter
	loadFailures     metric.Int64Counter
	transcriptions   metric.Int64Counter
	samples          metric.Int64Counter
	inferenceSeconds metric.Float64Histogram
}

// newInstruments always returns usable instruments; entries that fail to
// register fall back to no-ops and the joined error is reported.
func newInstruments(meter metric.Meter) (instruments, error) {
	fallback := noop.NewMeterProvider().Meter("noop")
	var errs []error

	configures, err := meter.Int64Counter(metricPrefix+"configures",
		metric.WithDescription("Number of parameter configuration calls."))
	if err != nil {
		errs = append(errs, err)
		configures, _ = fallback.Int64Counter("configures")
	}
	active, err := meter.Int64UpDownCounter(metricPrefix+"contexts.active",
		metric.WithDescription("Engine contexts currently loaded."))
	if err != nil {
		errs = append(errs, err)
		active, _ = fallback.Int64UpDownCounter("contexts.active")
	}
	loadFailures, err := meter.Int64Counter(metricPrefix+"contexts.load_failures",
		metric.WithDescription("Model loads that failed."))
	if err != nil {
		errs = append(errs, err)
		loadFailures, _ = fallback.Int64Counter("contexts.load_failures")
	}
	transcriptions, err := meter.Int64Counter(metricPrefix+"transcriptions",
		metric.WithDescription("Completed transcription passes."))
	if err != nil {
		errs = append(errs, err)
		transcriptions, _ = fallback.Int64Counter("transcriptions")
	}
	samples, err := meter.Int64Counter(metricPrefix+"samples",
		metric.WithDescription("Audio samples submitted for transcription."))
	if err != nil {
		errs = append(errs, err)
		samples, _ = fallback.Int64Counter("samples")
	}
	inference, err := meter.Float64Histogram(metricPrefix+"inference.duration",
		metric.WithDescription("Wall time of a full transcription pass."),
		metric.WithUnit("s"))
	if err != nil {
		errs = append(errs, err)
		inference, _ = fallback.Float64Histogram("inference.duration")
	}

	return instruments{
		configures:       configures,
		activeContexts:   active,
		loadFailures:     loadFailures,
		transcriptions:   transcriptions,
		samples:          samples,
		inferenceSeconds: inference,
	}, errors.Join(errs...)
}
