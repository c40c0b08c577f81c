package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chdir is t.Chdir for toolchains before Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restore wd: %v", err)
		}
	})
}

func writeConfig(t *testing.T, content string) {
	t.Helper()
	chdir(t, t.TempDir())
	if err := os.Mkdir("config", 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join("config", "testenv.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoad(t *testing.T) {
	writeConfig(t, `
http:
  port: 9090
manual:
  data_path: /data/manual.json
search:
  top_k: 20
`)

	cfg, err := Load("testenv")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Manual.DataPath != "/data/manual.json" {
		t.Errorf("data_path = %q", cfg.Manual.DataPath)
	}
	if cfg.Search.TopK != 20 {
		t.Errorf("top_k = %d, want 20", cfg.Search.TopK)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	writeConfig(t, "http:\n  port: 8080\n")

	cfg, err := Load("testenv")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("dimensions = %d, want 768", cfg.Embedding.Dimensions)
	}
	if cfg.Search.RankConstant != 60 {
		t.Errorf("rank_constant = %d, want 60", cfg.Search.RankConstant)
	}
	if cfg.Selection.MinConfidence != 0.008 {
		t.Errorf("min_confidence = %f, want 0.008", cfg.Selection.MinConfidence)
	}
	if cfg.Selection.MaxCandidates != 3 {
		t.Errorf("max_candidates = %d, want 3", cfg.Selection.MaxCandidates)
	}
	if cfg.LLM.Model != "gpt-4.1" {
		t.Errorf("llm model = %q, want gpt-4.1", cfg.LLM.Model)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_MANUAL_PATH", "/mnt/manual.json")
	writeConfig(t, `
http:
  port: 8080
manual:
  data_path: ${TEST_MANUAL_PATH}
  snapshot_path: ${TEST_UNSET_VAR:-fallback.snapshot}
`)

	cfg, err := Load("testenv")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Manual.DataPath != "/mnt/manual.json" {
		t.Errorf("data_path = %q, want env value", cfg.Manual.DataPath)
	}
	if cfg.Manual.SnapshotPath != "fallback.snapshot" {
		t.Errorf("snapshot_path = %q, want default fallback", cfg.Manual.SnapshotPath)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	writeConfig(t, "http:\n  port: 70000\n")

	if _, err := Load("testenv"); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load("nonexistent"); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestValidate_MarginExceedsMinConfidence(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	cfg.HTTP.Port = 8080
	cfg.Selection.SeparationMargin = 0.05

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "separation_margin") {
		t.Errorf("err = %v, want separation_margin validation failure", err)
	}
}

func TestValidate_CacheAddrsRequired(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	cfg.HTTP.Port = 8080
	cfg.Cache.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for enabled cache without addrs")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if env := GetEnv(); env != "local" {
		t.Errorf("env = %q, want local", env)
	}

	t.Setenv("ENV", "prod")
	if env := GetEnv(); env != "prod" {
		t.Errorf("env = %q, want prod", env)
	}
}
