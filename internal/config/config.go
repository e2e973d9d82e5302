package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Known smoothing methods and corpus formats. Kept as strings so the config
// package does not depend on the model code.
var (
	knownMethods = []string{"mle", "addone", "interpolated", "backoff", "kneserney"}
	knownFormats = []string{"", "text", "go", "python", "java", "javascript", "typescript"}
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	App       AppConfig       `yaml:"app"`
	Mcp       McpConfig       `yaml:"mcp"`
	Search    SearchConfig    `yaml:"search"`
	Generator GeneratorConfig `yaml:"generator"`
	Source    SourceConfig    `yaml:"source"`
}

type AppConfig struct {
	Port       int      `yaml:"port"`
	LogLevel   string   `yaml:"log_level"`
	LogOutputs []string `yaml:"log_outputs"`
	WorkDir    string   `yaml:"workdir"`
	// NumFileThreads bounds concurrent file tokenization when a corpus is a directory.
	NumFileThreads int `yaml:"num_file_threads"`
}

type McpConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GetAddress returns the listen address of the MCP server
func (m McpConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// SearchConfig controls the held-out hyperparameter search. Empty grids fall
// back to the model package defaults.
type SearchConfig struct {
	GammaGrid []float64 `yaml:"gamma_grid"`
	BetaGrid  []float64 `yaml:"beta_grid"`
	Workers   int       `yaml:"workers"`
}

type GeneratorConfig struct {
	// MaxTokens bounds generated sentences; 0 means unbounded.
	MaxTokens int   `yaml:"max_tokens"`
	Seed      int64 `yaml:"seed"`
}

// SourceConfig lists the models trained at startup.
type SourceConfig struct {
	Models []ModelSpec `yaml:"models"`
}

type ModelSpec struct {
	Name   string   `yaml:"name"`
	Method string   `yaml:"method"`
	Order  int      `yaml:"order"`
	Corpus string   `yaml:"corpus"`
	Format string   `yaml:"format"`
	Gamma  *float64 `yaml:"gamma,omitempty"`
	Beta   *float64 `yaml:"beta,omitempty"`
}

// LoadConfig reads the application config and the model source config. An
// empty sourcePath yields no startup models.
func LoadConfig(appPath, sourcePath string) (*Config, error) {
	cfg := &Config{}
	if err := readYAML(appPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}
	if sourcePath != "" {
		if err := readYAML(sourcePath, &cfg.Source); err != nil {
			return nil, fmt.Errorf("failed to load source config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSource reads a model source config on its own, for tools that train a
// named model without an app config.
func LoadSource(sourcePath string) (*Config, error) {
	cfg := &Config{}
	if err := readYAML(sourcePath, &cfg.Source); err != nil {
		return nil, fmt.Errorf("failed to load source config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes an app config document and fills defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func (c *Config) applyDefaults() {
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if len(c.App.LogOutputs) == 0 {
		c.App.LogOutputs = []string{"stdout"}
	}
	if c.App.NumFileThreads == 0 {
		c.App.NumFileThreads = 2
	}
	if c.Mcp.Host == "" {
		c.Mcp.Host = "localhost"
	}
	if c.Mcp.Port == 0 {
		c.Mcp.Port = 8081
	}
	if c.Search.Workers == 0 {
		c.Search.Workers = 1
	}
	if c.Generator.Seed == 0 {
		c.Generator.Seed = 1
	}
	for i := range c.Source.Models {
		m := &c.Source.Models[i]
		m.Method = strings.ToLower(m.Method)
		m.Format = strings.ToLower(m.Format)
	}
}

// Validate checks the config for values the server cannot run with
func (c *Config) Validate() error {
	if c.App.Port < 0 || c.App.Port > 65535 {
		return fmt.Errorf("%w: app port %d", ErrInvalidConfig, c.App.Port)
	}
	if c.Search.Workers < 0 {
		return fmt.Errorf("%w: search workers %d", ErrInvalidConfig, c.Search.Workers)
	}
	if c.Generator.MaxTokens < 0 {
		return fmt.Errorf("%w: generator max_tokens %d", ErrInvalidConfig, c.Generator.MaxTokens)
	}

	seen := make(map[string]bool)
	for i, m := range c.Source.Models {
		if m.Name == "" {
			return fmt.Errorf("%w: model %d has no name", ErrInvalidConfig, i)
		}
		if seen[m.Name] {
			return fmt.Errorf("%w: duplicate model name %q", ErrInvalidConfig, m.Name)
		}
		seen[m.Name] = true
		if !contains(knownMethods, m.Method) {
			return fmt.Errorf("%w: model %q has unknown method %q", ErrInvalidConfig, m.Name, m.Method)
		}
		if m.Order < 1 {
			return fmt.Errorf("%w: model %q has order %d", ErrInvalidConfig, m.Name, m.Order)
		}
		if m.Corpus == "" {
			return fmt.Errorf("%w: model %q has no corpus", ErrInvalidConfig, m.Name)
		}
		if !contains(knownFormats, m.Format) {
			return fmt.Errorf("%w: model %q has unknown format %q", ErrInvalidConfig, m.Name, m.Format)
		}
	}
	return nil
}

// GetModel returns the startup model with the given name
func (c *Config) GetModel(name string) (*ModelSpec, error) {
	for i := range c.Source.Models {
		if c.Source.Models[i].Name == name {
			return &c.Source.Models[i], nil
		}
	}
	return nil, fmt.Errorf("model %s not found in config", name)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
