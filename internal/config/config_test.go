package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "vei.yaml", `
sim:
  seed: 7
  scenario_path: ./scenarios/procurement.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 8808 {
		t.Fatalf("expected default http_port 8808, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Sim.TickResolutionMs != 1000 {
		t.Fatalf("expected default tick resolution 1000, got %d", cfg.Sim.TickResolutionMs)
	}
	if cfg.Sim.Seed != 7 {
		t.Fatalf("expected seed 7 preserved from file, got %d", cfg.Sim.Seed)
	}
	if len(cfg.Corpus.CRMAliasPacks) != 2 {
		t.Fatalf("expected default crm alias packs, got %v", cfg.Corpus.CRMAliasPacks)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected default logging format json, got %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "vei.yaml", `
server:
  bogus_field: true
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown config field")
	}
}

func TestLoadRejectsBadRealismThreshold(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "vei.yaml", `
corpus:
  realism_threshold: 4.5
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected a validation error for realism_threshold out of range")
	}
}

func TestEnvOverrideWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "vei.yaml", `
server:
  host: 0.0.0.0
  http_port: 9000
`)

	t.Setenv("VEI_HTTP_PORT", "9100")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9100 {
		t.Fatalf("expected env override to win, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("expected file value preserved when no override set, got %q", cfg.Server.Host)
	}
}

func TestIncludeDirectiveMerges(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "base.yaml", `
logging:
  level: debug
`)
	path := writeConfigFile(t, dir, "vei.yaml", `
include: base.yaml
sim:
  seed: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected included logging.level to merge, got %q", cfg.Logging.Level)
	}
	if cfg.Sim.Seed != 3 {
		t.Fatalf("expected own file's sim.seed to survive merge, got %d", cfg.Sim.Seed)
	}
}
