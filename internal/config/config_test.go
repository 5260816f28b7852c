package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Export.ChunkSize != 5000 || cfg.Export.BaseName != "Document" || cfg.Export.Renderer != "pdf" {
		t.Fatalf("export=%+v", cfg.Export)
	}
	if cfg.Temporal.TaskQueue != "table-export" || cfg.API.Port != 8080 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Export.Location() != time.UTC {
		t.Fatalf("location=%v", cfg.Export.Location())
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("EXPORT_CHUNK_SIZE", "250")
	t.Setenv("EXPORT_PROCESS_DELAY", "1s")
	t.Setenv("EXPORT_RENDERER", "chromium")
	t.Setenv("TEMPORAL_TARGET_HOST", "temporal:7233")
	t.Setenv("OUTPUT_URI", "s3://exports/out")
	t.Setenv("REQUEST_URI", "s3://exports/requests")
	t.Setenv("STAGING_URI", "s3://exports/staging")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Export.ChunkSize != 250 || cfg.Export.ProcessDelay != time.Second || cfg.Export.Renderer != "chromium" {
		t.Fatalf("export=%+v", cfg.Export)
	}
	if cfg.Temporal.Address != "temporal:7233" || cfg.Storage.OutputURI != "s3://exports/out" || cfg.Storage.RequestURI != "s3://exports/requests" || cfg.Storage.StagingURI != "s3://exports/staging" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if got := cfg.Coordinator(nil).Config().ChunkSize; got != 250 {
		t.Fatalf("coordinator chunk size=%d", got)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"EXPORT_CHUNK_SIZE": "0",
		"EXPORT_RENDERER":   "docx",
		"EXPORT_TIMEZONE":   "Mars/Olympus",
	}
	for env, val := range cases {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", env, val)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "bogus"} {
		if NewLogger(lvl) == nil {
			t.Fatalf("nil logger for %q", lvl)
		}
	}
}
