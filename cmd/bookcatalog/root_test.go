package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bookcatalog/internal/catalog"
	"bookcatalog/internal/clients"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// isolate keeps config lookup away from the developer's real files.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	return dir
}

func TestRootCmd_RunsMenu(t *testing.T) {
	isolate(t)

	var out bytes.Buffer
	root := newRootCmd("test")
	root.SetArgs([]string{})
	root.SetIn(strings.NewReader("1\nDune\nHerbert\n111\n3\n8\n"))
	root.SetOut(&out)

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "Book added successfully.")
	require.Contains(t, out.String(), "Title: Dune, Author: Herbert, ISBN: 111, Available: Yes")
	require.Contains(t, out.String(), "Goodbye!")
}

func TestRootCmd_DebugWritesLogFile(t *testing.T) {
	dir := isolate(t)
	logPath := filepath.Join(dir, "debug.log")

	root := newRootCmd("test")
	root.SetArgs([]string{"--debug", "--log-file", logPath})
	root.SetIn(strings.NewReader("6\n999\n8\n"))
	root.SetOut(&bytes.Buffer{})

	require.NoError(t, root.Execute())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "[catalog] catalog operation op=check_out outcome=not_found")
}

func TestRootCmd_BadConfig(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracing:\n  exporter: zipkin\n"), 0o644))

	root := newRootCmd("test")
	root.SetArgs([]string{"--config", path})
	root.SetIn(strings.NewReader("8\n"))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	require.Error(t, root.Execute())
}

func TestRootCmd_RejectsStdoutExporter(t *testing.T) {
	isolate(t)
	t.Setenv("BOOKCATALOG_TRACING_ENABLED", "true")
	t.Setenv("BOOKCATALOG_TRACING_EXPORTER", "stdout")

	var out bytes.Buffer
	root := newRootCmd("test")
	root.SetArgs([]string{})
	root.SetIn(strings.NewReader("8\n"))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})

	require.ErrorIs(t, root.Execute(), errStdoutExporter)
	require.NotContains(t, out.String(), "Library Menu: ")
}

func TestSetup_InstallsMeterProvider(t *testing.T) {
	dir := isolate(t)
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
	})

	opts := &options{v: viper.New()}
	opts.v.Set("tracing.enabled", true)
	opts.v.Set("tracing.file_path", filepath.Join(dir, "telemetry.jsonl"))

	_, cleanup, err := setup(context.Background(), opts, true)
	defer cleanup()
	require.NoError(t, err)
	require.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())
}

func TestInitConfigCmd(t *testing.T) {
	dir := isolate(t)

	var out bytes.Buffer
	root := newRootCmd("test")
	root.SetArgs([]string{"init-config"})
	root.SetOut(&out)

	require.NoError(t, root.Execute())
	require.FileExists(t, filepath.Join(dir, ".bookcatalog", "config.yaml"))
	require.Contains(t, out.String(), "Wrote .bookcatalog/config.yaml")
}

func TestServe_MenuOverRemoteCatalog(t *testing.T) {
	isolate(t)

	opts := &options{v: viper.New()}
	opts.v.Set("http.addr", "127.0.0.1:0")
	serveCmd := newServeCmd(opts)
	serveCmd.SetOut(&bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runServe(ctx, serveCmd, opts, ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-errCh:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	var out bytes.Buffer
	root := newRootCmd("test")
	root.SetArgs([]string{"--remote", "http://" + addr})
	root.SetIn(strings.NewReader("1\nDune\nHerbert\n111\n6\n111\n8\n"))
	root.SetOut(&out)
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "Book checked out.")

	item, outcome, err := clients.NewCatalogClient("http://"+addr).Get(context.Background(), "111")
	require.NoError(t, err)
	require.Equal(t, catalog.Found, outcome)
	require.False(t, item.Available)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
