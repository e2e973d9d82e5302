package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("app:\n  workdir: /tmp/lm\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.App.Port != 8080 {
		t.Fatalf("Expected default port 8080, got %d", cfg.App.Port)
	}
	if cfg.App.LogLevel != "info" {
		t.Fatalf("Expected default log level 'info', got '%s'", cfg.App.LogLevel)
	}
	if cfg.Mcp.GetAddress() != "localhost:8081" {
		t.Fatalf("Expected MCP address 'localhost:8081', got '%s'", cfg.Mcp.GetAddress())
	}
	if cfg.Search.Workers != 1 {
		t.Fatalf("Expected 1 search worker, got %d", cfg.Search.Workers)
	}
	if cfg.App.WorkDir != "/tmp/lm" {
		t.Fatalf("Expected workdir '/tmp/lm', got '%s'", cfg.App.WorkDir)
	}
}

func TestLoadConfig_WithModels(t *testing.T) {
	dir := t.TempDir()
	appPath := filepath.Join(dir, "app.yaml")
	sourcePath := filepath.Join(dir, "models.yaml")

	app := `
app:
  port: 9000
  log_level: debug
search:
  gamma_grid: [10, 20]
  workers: 4
generator:
  max_tokens: 50
  seed: 7
`
	models := `
models:
  - name: shakespeare
    method: Interpolated
    order: 3
    corpus: corpus.txt
    gamma: 100
  - name: code
    method: kneserney
    order: 4
    corpus: ./src
    format: go
`
	if err := os.WriteFile(appPath, []byte(app), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(sourcePath, []byte(models), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(appPath, sourcePath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.App.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.App.Port)
	}
	if len(cfg.Search.GammaGrid) != 2 || cfg.Search.GammaGrid[1] != 20 {
		t.Errorf("Unexpected gamma grid %v", cfg.Search.GammaGrid)
	}
	if cfg.Generator.MaxTokens != 50 || cfg.Generator.Seed != 7 {
		t.Errorf("Unexpected generator config %+v", cfg.Generator)
	}
	if len(cfg.Source.Models) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(cfg.Source.Models))
	}

	m, err := cfg.GetModel("shakespeare")
	if err != nil {
		t.Fatalf("GetModel failed: %v", err)
	}
	if m.Method != "interpolated" {
		t.Errorf("Expected method to be lower-cased, got '%s'", m.Method)
	}
	if m.Gamma == nil || *m.Gamma != 100 {
		t.Errorf("Expected gamma 100, got %v", m.Gamma)
	}
	if m.Beta != nil {
		t.Errorf("Expected no beta, got %v", *m.Beta)
	}

	if _, err := cfg.GetModel("missing"); err == nil {
		t.Errorf("Expected error for unknown model")
	}
}

func TestLoadSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	models := `models:
  - name: cats
    method: BackOff
    order: 2
    corpus: cats.txt
    beta: 0.5
`
	if err := os.WriteFile(path, []byte(models), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadSource(path)
	if err != nil {
		t.Fatalf("LoadSource failed: %v", err)
	}
	m, err := cfg.GetModel("cats")
	if err != nil {
		t.Fatalf("GetModel failed: %v", err)
	}
	if m.Method != "backoff" || m.Beta == nil || *m.Beta != 0.5 {
		t.Errorf("Unexpected model %+v", m)
	}

	if _, err := LoadSource(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Expected error for missing file")
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		model ModelSpec
	}{
		{"no name", ModelSpec{Method: "mle", Order: 2, Corpus: "c.txt"}},
		{"bad method", ModelSpec{Name: "a", Method: "wittenbell", Order: 2, Corpus: "c.txt"}},
		{"bad order", ModelSpec{Name: "a", Method: "mle", Order: 0, Corpus: "c.txt"}},
		{"no corpus", ModelSpec{Name: "a", Method: "mle", Order: 2}},
		{"bad format", ModelSpec{Name: "a", Method: "mle", Order: 2, Corpus: "c", Format: "rust"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Source: SourceConfig{Models: []ModelSpec{tt.model}}}
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidate_DuplicateNames(t *testing.T) {
	spec := ModelSpec{Name: "dup", Method: "addone", Order: 2, Corpus: "c.txt"}
	cfg := &Config{Source: SourceConfig{Models: []ModelSpec{spec, spec}}}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig for duplicate names, got %v", err)
	}
}
