package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml")); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with defaults: %v", err)
	}
	if cfg.Server.AdminAddr != "127.0.0.1:7686" {
		t.Errorf("AdminAddr = %q", cfg.Server.AdminAddr)
	}
	if cfg.Server.MaxConns != 100 {
		t.Errorf("MaxConns = %d", cfg.Server.MaxConns)
	}
	if cfg.Pool.ProjectPorts != "7687-7746" {
		t.Errorf("ProjectPorts = %q", cfg.Pool.ProjectPorts)
	}
	if cfg.Project.DeleteGrace != 60*time.Second {
		t.Errorf("DeleteGrace = %v", cfg.Project.DeleteGrace)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
server:
  admin_addr: "0.0.0.0:9000"
  max_conns: 12
pool:
  project_ports: "7687, 8000-8009"
project:
  delete_grace: 5s
log:
  file: /var/log/genograph.log
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.AdminAddr != "0.0.0.0:9000" {
		t.Errorf("AdminAddr = %q", cfg.Server.AdminAddr)
	}
	if cfg.Server.MaxConns != 12 {
		t.Errorf("MaxConns = %d", cfg.Server.MaxConns)
	}
	// Unset keys keep their defaults.
	if cfg.Server.QueryAddr != "127.0.0.1:7685" {
		t.Errorf("QueryAddr = %q", cfg.Server.QueryAddr)
	}
	if cfg.Pool.ProjectPorts != "7687, 8000-8009" {
		t.Errorf("ProjectPorts = %q", cfg.Pool.ProjectPorts)
	}
	if cfg.Project.DeleteGrace != 5*time.Second {
		t.Errorf("DeleteGrace = %v", cfg.Project.DeleteGrace)
	}
	if cfg.Log.File != "/var/log/genograph.log" {
		t.Errorf("Log.File = %q", cfg.Log.File)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  path: from-file.db\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GENOGRAPH_STORE_PATH", "from-env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "from-env.db" {
		t.Errorf("Store.Path = %q, want env override", cfg.Store.Path)
	}
}
