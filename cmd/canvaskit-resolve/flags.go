package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"time"
)

// cliConfig carries everything parsed off the command line.
type cliConfig struct {
	ConfigPath  string
	LayoutPath  string
	DataPath    string
	Tenant      string
	Org         string
	User        string
	Timeout     time.Duration
	LogLevel    string
	LogFormat   string
	Compact     bool
	Validate    bool
	ShowVersion bool
	ShowHelp    bool
}

// stringFlag registers a string flag under a long and an optional short
// name. The default comes from the named environment variable when set.
func stringFlag(p *string, long, short, env, fallback, help string) {
	def := envOr(env, fallback)
	help = fmt.Sprintf("%s (env: %s)", help, env)
	flag.StringVar(p, long, def, help)
	if short != "" {
		flag.StringVar(p, short, def, help)
	}
}

func parseFlags() *cliConfig {
	cfg := &cliConfig{}

	stringFlag(&cfg.ConfigPath, "config", "c", "CANVASKIT_CONFIG", "",
		"Path to runtime config, empty for built-in defaults")
	stringFlag(&cfg.LayoutPath, "layout", "l", "CANVASKIT_LAYOUT", "",
		"Path to the canvas layout document to resolve")
	stringFlag(&cfg.DataPath, "data", "", "CANVASKIT_DATA", "",
		"JSON document served by the static source")
	stringFlag(&cfg.Tenant, "tenant", "", "CANVASKIT_TENANT", "",
		"Tenant id carried in the binding context")
	stringFlag(&cfg.Org, "org", "", "CANVASKIT_ORG", "",
		"Organization id carried in the binding context")
	stringFlag(&cfg.User, "user", "", "CANVASKIT_USER", "",
		"User id carried in the binding context")
	stringFlag(&cfg.LogLevel, "log-level", "", "CANVASKIT_LOG_LEVEL", "info",
		"Log level: debug, info, warn, error")
	stringFlag(&cfg.LogFormat, "log-format", "", "CANVASKIT_LOG_FORMAT", "text",
		"Log format: json, text")

	flag.DurationVar(&cfg.Timeout, "timeout",
		envDuration("CANVASKIT_TIMEOUT", 30*time.Second),
		"Overall resolution deadline (env: CANVASKIT_TIMEOUT)")

	flag.BoolVar(&cfg.Compact, "compact", false, "Print the result without indentation")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate config and layout, then exit")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	flag.Usage = printUsage
	flag.Parse()

	return cfg
}

func validateFlags(cfg *cliConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// A layout is required except in validate mode, where a config
	// alone can be checked.
	if cfg.LayoutPath == "" && !cfg.Validate {
		return fmt.Errorf("no layout document given (use -layout)")
	}

	for _, path := range []string{cfg.ConfigPath, cfg.LayoutPath, cfg.DataPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("file not found: %s", path)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %v", cfg.Timeout)
	}
	return nil
}

func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - resolve canvas layout bindings

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Sources registered from config: static (always), rest, realtime,
platform-kv. Bindings in the layout reference them by those ids.

Examples:
  # Resolve a layout against a local data snapshot
  %[1]s --layout=dashboard.json --data=snapshot.json

  # Resolve with live sources from a runtime config
  %[1]s --config=/etc/canvaskit/config.yaml --layout=dashboard.json

  # Validate a config without resolving anything
  %[1]s --config=config.json --validate

  # Compact output for piping
  %[1]s --layout=dashboard.json --data=snapshot.json --compact | jq .

Version: %s
Build: %s
`, os.Args[0], Version, BuildTime)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
