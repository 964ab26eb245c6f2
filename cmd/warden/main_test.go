package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"warden/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("DATABASE_URL", filepath.Join(dir, "warden.db"))
}

func TestFilterCommandsRoundTrip(t *testing.T) {
	setupEnv(t)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	if err := runFilterAdd(cmd, []string{`\bslur\b`}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out.String(), "Successfully added filter `\\bslur\\b`") {
		t.Fatalf("unexpected add output %q", out.String())
	}

	out.Reset()
	if err := runFilterLs(cmd, nil); err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out.String(), `\bslur\b`) || !strings.Contains(out.String(), `discord\.gg`) {
		t.Fatalf("expected added and seeded patterns, got %q", out.String())
	}

	out.Reset()
	if err := runFilterDel(cmd, []string{`\bslur\b`}); err != nil {
		t.Fatalf("del: %v", err)
	}
	out.Reset()
	if err := runFilterLs(cmd, nil); err != nil {
		t.Fatalf("ls: %v", err)
	}
	if strings.Contains(out.String(), `\bslur\b`) {
		t.Fatalf("removed pattern still listed: %q", out.String())
	}
}

func TestFilterAddWarnsOnInvalidPattern(t *testing.T) {
	setupEnv(t)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	if err := runFilterAdd(cmd, []string{`(broken`}); err != nil {
		t.Fatalf("invalid patterns are still stored: %v", err)
	}
	if !strings.Contains(out.String(), "Warning") {
		t.Fatalf("expected compile warning, got %q", out.String())
	}
}

func TestPrintPatternsEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := printPatterns(&out, nil); err != nil {
		t.Fatalf("print: %v", err)
	}
	if out.String() != "No filters.\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestHealthServer(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	server := healthServer(":0", store, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected metrics status %d", rec.Code)
	}
}
