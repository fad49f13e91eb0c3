package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "bosswatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

const validYAML = `
server:
  addr: "127.0.0.1:9090"
  read_timeout: "5s"
  shutdown_timeout: "5s"

storage:
  profile: "memory"
  patrol_retention: 200

catalog:
  path: "/etc/bosswatch/catalog.yaml"
  watch: true

notify:
  workers: 2
  queue_size: 16

log:
  level: "debug"
  pretty: true
`

func TestLoadValidYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), validYAML)
	t.Setenv("BOSSWATCH_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server.read_timeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.PatrolRetention != 200 {
		t.Errorf("storage.patrol_retention = %d", cfg.Storage.PatrolRetention)
	}
	if !cfg.Catalog.Watch || cfg.Catalog.Path == "" {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
	if cfg.Notify.Workers != 2 {
		t.Errorf("notify.workers = %d", cfg.Notify.Workers)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Pretty {
		t.Errorf("log = %+v", cfg.Log)
	}

	dsn, err := cfg.StateBackendDSN()
	if err != nil {
		t.Fatal(err)
	}
	if dsn != "memory://" {
		t.Errorf("state dsn = %q, want memory://", dsn)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), validYAML)
	t.Setenv("BOSSWATCH_CONFIG", path)
	t.Setenv("BOSSWATCH_ADDR", ":3000")
	t.Setenv("BOSSWATCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("server.addr = %q, want env override", cfg.Server.Addr)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want env override", cfg.Log.Level)
	}
}

func TestLoadNoFileEnvOnly(t *testing.T) {
	t.Setenv("BOSSWATCH_CONFIG", "")
	origDir, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	_ = os.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("server.addr = %q, want default", cfg.Server.Addr)
	}
	if cfg.Storage.Profile != "durable-local" {
		t.Errorf("storage.profile = %q, want default", cfg.Storage.Profile)
	}
	dsn, err := cfg.StateBackendDSN()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(dsn, "file://") || !strings.Contains(dsn, "state.json") {
		t.Errorf("state dsn = %q", dsn)
	}
}

func TestLoadExplicitPathNotFound(t *testing.T) {
	t.Setenv("BOSSWATCH_CONFIG", "/nonexistent/bosswatch.yaml")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestStateBackendDSNProfiles(t *testing.T) {
	cases := []struct {
		name    string
		storage StorageConfig
		want    string
		wantErr bool
	}{
		{"explicit dsn wins", StorageConfig{Profile: "memory", StateDSN: "sqlite:///tmp/s.db"}, "sqlite:///tmp/s.db", false},
		{"custom is empty", StorageConfig{Profile: "custom"}, "", false},
		{"memory", StorageConfig{Profile: "memory"}, "memory://", false},
		{"production requires dsn", StorageConfig{Profile: "production"}, "", true},
		{"production", StorageConfig{Profile: "production", PostgresDSN: "postgres://u@h/db"}, "postgres://u@h/db", false},
		{"durable-local", StorageConfig{Profile: "durable-local", DataDir: "/var/lib/bw"}, "file://" + filepath.Join("/var/lib/bw", "state.json"), false},
		{"unknown profile", StorageConfig{Profile: "tape"}, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{Storage: tc.storage}
			dsn, err := cfg.StateBackendDSN()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if dsn != tc.want {
				t.Errorf("dsn = %q, want %q", dsn, tc.want)
			}
		})
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Config{
		Storage: StorageConfig{Profile: "memory", PatrolRetention: 500},
		Notify:  NotifyConfig{Workers: 4},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := cfg
	bad.Notify.Workers = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero workers accepted")
	}

	bad = cfg
	bad.Storage.PatrolRetention = -1
	if err := bad.Validate(); err == nil {
		t.Error("negative patrol retention accepted")
	}
}
