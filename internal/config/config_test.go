package config

import (
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_EmptyPrefix(t *testing.T) {
	cfg := Defaults()
	cfg.General.Prefix = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty prefix")
	}
}

func TestValidate_MaxTurns(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.MaxTurns = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxTurns=0")
	}

	cfg = Defaults()
	cfg.Engine.MaxTurns = 7
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for odd maxTurns")
	}

	cfg = Defaults()
	cfg.Engine.MaxTurns = 2
	if err := Validate(cfg); err != nil {
		t.Fatalf("maxTurns=2 should be valid: %v", err)
	}
}

func TestValidate_NegativeCooldown(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.CooldownMs = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative cooldown")
	}
}

func TestValidate_TopP(t *testing.T) {
	cfg := Defaults()
	cfg.Completion.TopP = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for topP=0")
	}

	cfg = Defaults()
	cfg.Completion.TopP = 1.5
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for topP>1")
	}
}

func TestValidate_EnabledTransportNeedsToken(t *testing.T) {
	cfg := Defaults()
	cfg.Transports.Discord.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled discord without token")
	}

	cfg = Defaults()
	cfg.Transports.Telegram.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled telegram without token")
	}
}

func TestValidate_MetricsPort(t *testing.T) {
	cfg := Defaults()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for metrics port 0")
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.General.Prefix = ">>"
	original.Completion.Model = "test-model"

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.General.Prefix != ">>" {
		t.Fatalf("expected '>>', got %q", loaded.General.Prefix)
	}
	if loaded.Completion.Model != "test-model" {
		t.Fatalf("expected 'test-model', got %q", loaded.Completion.Model)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"general": {"prefix": "."}}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.General.Prefix != "." {
		t.Fatalf("expected '.', got %q", cfg.General.Prefix)
	}
	if cfg.Engine.MaxTurns != 20 {
		t.Fatalf("expected default maxTurns=20, got %d", cfg.Engine.MaxTurns)
	}
	if cfg.Engine.CooldownMs != 500 {
		t.Fatalf("expected default cooldownMs=500, got %d", cfg.Engine.CooldownMs)
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_Simple(t *testing.T) {
	t.Setenv("REPLIQUE_TEST_TOKEN", "secret123")
	out := ExpandEnvVars(`{"token": "${REPLIQUE_TEST_TOKEN}"}`)
	if out != `{"token": "secret123"}` {
		t.Fatalf("unexpected expansion: %s", out)
	}
}

func TestExpandEnvVars_Default(t *testing.T) {
	os.Unsetenv("REPLIQUE_UNSET_VAR")
	out := ExpandEnvVars(`${REPLIQUE_UNSET_VAR:-fallback}`)
	if out != "fallback" {
		t.Fatalf("expected 'fallback', got %q", out)
	}
}

func TestExpandEnvVars_UnsetNoDefault(t *testing.T) {
	os.Unsetenv("REPLIQUE_UNSET_VAR")
	in := "${REPLIQUE_UNSET_VAR}"
	if out := ExpandEnvVars(in); out != in {
		t.Fatalf("expected original string preserved, got %q", out)
	}
}

func TestExpandEnvVars_InLoad(t *testing.T) {
	t.Setenv("REPLIQUE_TEST_PREFIX", "$$")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"general": {"prefix": "${REPLIQUE_TEST_PREFIX}"}}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.General.Prefix != "$$" {
		t.Fatalf("expected '$$', got %q", cfg.General.Prefix)
	}
}
