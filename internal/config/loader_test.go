package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const sample = `
version: "1"
log:
  level: ${TICKWORK_TEST_LEVEL:-info}
telemetry:
  endpoint: ${TICKWORK_TEST_OTLP:-}
modules:
  runtime.loop:
    max_jobs_per_tick: ${TICKWORK_TEST_JOBS}
  storage.sqlite: {}
`

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TICKWORK_TEST_JOBS", "7")
	t.Setenv("TICKWORK_TEST_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "tickwork.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if cfg.Telemetry.Endpoint != "" {
		t.Errorf("telemetry.endpoint = %q, want empty default", cfg.Telemetry.Endpoint)
	}
	node := cfg.Modules["runtime.loop"]
	var rt struct {
		MaxJobs int `yaml:"max_jobs_per_tick"`
	}
	if err := node.Decode(&rt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rt.MaxJobs != 7 {
		t.Errorf("max_jobs_per_tick = %d, want 7", rt.MaxJobs)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickwork.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TICKWORK_TEST_JOBS", "")
	_ = os.Unsetenv("TICKWORK_TEST_JOBS")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "TICKWORK_TEST_JOBS") {
		t.Errorf("err = %v, want unresolved TICKWORK_TEST_JOBS", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExpandEnv_EscapedDefault(t *testing.T) {
	t.Parallel()

	out, err := expandEnv([]byte(`a: ${TICKWORK_UNSET_VAR:-x\}y}`))
	if err != nil {
		t.Fatalf("expandEnv: %v", err)
	}
	if string(out) != `a: x\}y` {
		t.Errorf("got %q", out)
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	t.Parallel()

	var rt yaml.Node
	if err := rt.Encode(map[string]int{"max_jobs_per_tick": 3}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	cfg := &Config{
		Version: CurrentVersion,
		Log:     LogConfig{Format: "json"},
		Modules: map[string]yaml.Node{RequiredModule: rt},
	}

	path := filepath.Join(t.TempDir(), "nested", "tickwork.yaml")
	if err := Write(path, cfg, false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(path, cfg, false); err == nil {
		t.Error("second Write without overwrite should fail")
	}
	if err := Write(path, cfg, true); err != nil {
		t.Errorf("Write with overwrite: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != CurrentVersion || got.Log.Format != "json" {
		t.Errorf("got %+v", got)
	}
	if _, ok := got.Modules[RequiredModule]; !ok {
		t.Errorf("modules = %v", got.Modules)
	}
}
