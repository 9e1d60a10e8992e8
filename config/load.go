package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/canvaskit/errors"
)

const (
	// maxConfigSize caps config documents to keep a bad path from
	// exhausting memory.
	maxConfigSize = 10 << 20

	// maxDocumentDepth caps JSON nesting.
	maxDocumentDepth = 100

	maxPathLen = 4096

	envPrefix = "CANVASKIT"
)

// Load parses a JSON or YAML config document over DefaultConfig: fields
// absent from the document keep their default values. Environment
// overrides are applied and the result is validated. An empty document
// yields the defaults.
func Load(data []byte) (*Config, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if err := validateDocumentDepth(trimmed); err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
				"config", "Load", "document structure")
		}
		cfg := DefaultConfig()
		if err := json.Unmarshal(trimmed, cfg); err == nil {
			return finishLoad(cfg)
		}
		// Fall through: brace-leading YAML flow documents are not JSON.
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"config", "Load", "document parse")
	}
	normalized, err := json.Marshal(tree)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"config", "Load", "document normalize")
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(normalized, cfg); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"config", "Load", "document decode")
	}
	return finishLoad(cfg)
}

func finishLoad(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and parses a config file. The extension must be .json,
// .yaml, or .yml.
func LoadFile(path string) (*Config, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// SaveToFile writes the config as indented JSON with owner-only
// permissions. The path must carry a .json extension.
func (c *Config) SaveToFile(path string) error {
	if err := validateConfigPath("SaveToFile", path, ".json"); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if len(data) > maxConfigSize {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "SaveToFile",
			fmt.Sprintf("config too large: %d bytes", len(data)))
	}
	return os.WriteFile(path, data, 0600)
}

func readConfigFile(path string) ([]byte, error) {
	if err := validateConfigPath("LoadFile", path, ".json", ".yaml", ".yml"); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "LoadFile",
			fmt.Sprintf("not a regular file: %s", path))
	}
	if info.Size() > maxConfigSize {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "LoadFile",
			fmt.Sprintf("config file too large: %d bytes", info.Size()))
	}

	return os.ReadFile(path)
}

func validateConfigPath(method, path string, allowedExts ...string) error {
	if path == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", method,
			"empty config path")
	}
	if len(path) > maxPathLen {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", method,
			fmt.Sprintf("path too long: %d characters", len(path)))
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range allowedExts {
		if ext == allowed {
			return nil
		}
	}
	return errors.WrapInvalid(errors.ErrInvalidConfig, "config", method,
		fmt.Sprintf("unsupported config extension %q (want one of %v)", ext, allowedExts))
}

// applyEnvOverrides lets deploy environments override connection targets
// without editing the document.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(envPrefix + "_CHANNEL_URL"); val != "" {
		cfg.Channel.URL = val
	}
	if val := os.Getenv(envPrefix + "_REST_BASE_URL"); val != "" {
		cfg.Sources.REST.BaseURL = val
	}
	if val := os.Getenv(envPrefix + "_PLATFORM_KV_URL"); val != "" {
		cfg.Sources.PlatformKV.URL = val
	}
}

// validateDocumentDepth walks braces and brackets outside string
// literals and rejects documents nested beyond maxDocumentDepth.
func validateDocumentDepth(data []byte) error {
	depth := 0
	inString := false
	escaped := false

	for _, b := range data {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case b == '\\' && inString:
			escaped = true
		case b == '"':
			inString = !inString
		case inString:
		case b == '{' || b == '[':
			depth++
			if depth > maxDocumentDepth {
				return fmt.Errorf("nesting too deep: exceeds %d levels", maxDocumentDepth)
			}
		case b == '}' || b == ']':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced brackets")
			}
		}
	}

	if depth != 0 {
		return fmt.Errorf("unclosed brackets at depth %d", depth)
	}
	return nil
}
