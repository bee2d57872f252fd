package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// resetGlobals restores no-op global providers after a test installs SDK ones.
func resetGlobals(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
	})
}

func TestNewProvider_DisabledInstallsNothing(t *testing.T) {
	before := otel.GetMeterProvider()

	p, err := NewProvider(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.Nil(t, p.tracerProvider)
	require.Nil(t, p.meterProvider)
	require.Equal(t, before, otel.GetMeterProvider())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_FileExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.FilePath = filepath.Join(t.TempDir(), "traces", "out.jsonl")
	resetGlobals(t)

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	require.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())

	_, span := otel.Tracer("test").Start(context.Background(), "test.span")
	span.End()

	counter, err := otel.Meter("test").Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 3, metric.WithAttributes(attribute.String("operation", "insert")))

	require.NoError(t, p.Shutdown(context.Background()))

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	require.Contains(t, string(data), "test.span")
	require.Contains(t, string(data), "test.counter")
	require.Contains(t, string(data), "insert")
}

func TestNewProvider_NoneExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = ExporterNone
	resetGlobals(t)

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, p.tracerProvider)
	require.NotNil(t, p.meterProvider)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"otlp", func(c *Config) { c.Exporter = ExporterOTLP }, false},
		{"unknown exporter", func(c *Config) { c.Exporter = "jaeger" }, true},
		{"sample rate too high", func(c *Config) { c.SampleRate = 1.5 }, true},
		{"negative sample rate", func(c *Config) { c.SampleRate = -0.1 }, true},
		{"negative metric interval", func(c *Config) { c.MetricInterval = -time.Second }, true},
		{"file without path", func(c *Config) { c.Enabled = true; c.FilePath = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
