// Package main implements the canvaskit-resolve command line tool.
// It loads a canvas layout document, resolves every data binding in it
// against the configured sources, and prints the hydrated document to
// stdout. Logs go to stderr so the output stays pipeable.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/canvaskit/binding"
	"github.com/c360/canvaskit/channel"
	"github.com/c360/canvaskit/config"
	"github.com/c360/canvaskit/health"
	"github.com/c360/canvaskit/pkg/cache"
	"github.com/c360/canvaskit/source/platformkv"
	"github.com/c360/canvaskit/source/realtime"
	"github.com/c360/canvaskit/source/rest"
	"github.com/c360/canvaskit/source/static"
	"github.com/c360/canvaskit/transform"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "canvaskit-resolve"

	// Highest config document version this build understands.
	supportedConfigVersion = "1.0.0"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Resolution failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadRuntimeConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		return validateOnly(cliCfg, cfg)
	}

	layout, err := readJSONFile(cliCfg.LayoutPath)
	if err != nil {
		return fmt.Errorf("read layout: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bctx := binding.Context{
		TenantID:       cliCfg.Tenant,
		OrganizationID: cliCfg.Org,
		UserID:         cliCfg.User,
		SessionID:      uuid.NewString(),
	}

	resolver, cleanup, err := buildResolver(ctx, cfg, cliCfg, bctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resolveCtx, cancel := context.WithTimeout(ctx, cliCfg.Timeout)
	defer cancel()

	started := time.Now()
	resolved := resolver.ResolveObject(resolveCtx, layout, bctx)
	slog.Debug("Layout resolved",
		"duration_ms", time.Since(started).Milliseconds(),
		"cache_entries", resolver.CacheStats().Size)

	return writeDocument(os.Stdout, resolved, cliCfg.Compact)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*cliConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printUsage()
		return nil, true, nil
	}

	slog.SetDefault(setupLogger(cliCfg.LogLevel, cliCfg.LogFormat))

	slog.Debug("Starting canvaskit-resolve",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"layout_path", cliCfg.LayoutPath)

	return cliCfg, false, nil
}

// loadRuntimeConfig loads the runtime config, falling back to built-in
// defaults when no path is given.
func loadRuntimeConfig(path string) (*config.Config, error) {
	if path == "" {
		slog.Debug("No config file given, using built-in defaults")
		return config.DefaultConfig(), nil
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if newer, err := config.CompareVersions(cfg.Version, supportedConfigVersion); err == nil && newer > 0 {
		slog.Warn("Config document is newer than this build understands",
			"document_version", cfg.Version,
			"supported_version", supportedConfigVersion)
	}

	return cfg, nil
}

// validateOnly checks the config (already validated by the loader) and,
// when a layout path is given, that the layout document parses.
func validateOnly(cliCfg *cliConfig, cfg *config.Config) error {
	slog.Info("Configuration is valid", "version", cfg.Version)

	if cliCfg.LayoutPath == "" {
		return nil
	}
	if _, err := readJSONFile(cliCfg.LayoutPath); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	slog.Info("Layout document is valid", "path", cliCfg.LayoutPath)
	return nil
}

// buildResolver wires the source registry, transform catalog, cache, and
// resolver from the runtime config. The returned cleanup func closes
// whatever connections were opened, in reverse order.
func buildResolver(
	ctx context.Context,
	cfg *config.Config,
	cliCfg *cliConfig,
	bctx binding.Context,
) (*binding.Resolver, func(), error) {
	sources := binding.NewRegistry()
	transforms := transform.NewRegistry()

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*binding.Resolver, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// The static source is always registered so demo layouts resolve
	// without any backend running.
	staticData, err := loadStaticData(cliCfg.DataPath)
	if err != nil {
		return fail(err)
	}
	if err := static.New(staticData).Register(sources); err != nil {
		return fail(fmt.Errorf("register static source: %w", err))
	}

	if cfg.Sources.REST.BaseURL != "" {
		restSrc, err := newRESTSource(cfg)
		if err != nil {
			return fail(fmt.Errorf("build rest source: %w", err))
		}
		if err := restSrc.Register(sources); err != nil {
			return fail(fmt.Errorf("register rest source: %w", err))
		}
		slog.Debug("REST source registered", "base_url", cfg.Sources.REST.BaseURL)
	}

	if cfg.Sources.PlatformKV.URL != "" {
		nc, err := nats.Connect(cfg.Sources.PlatformKV.URL, nats.Name(appName))
		if err != nil {
			return fail(fmt.Errorf("connect platform kv: %w", err))
		}
		cleanups = append(cleanups, nc.Close)

		js, err := jetstream.New(nc)
		if err != nil {
			return fail(fmt.Errorf("open jetstream: %w", err))
		}
		kvSrc, err := platformkv.New(js,
			platformkv.WithTimeout(time.Duration(cfg.Sources.PlatformKV.Timeout)))
		if err != nil {
			return fail(fmt.Errorf("build platform kv source: %w", err))
		}
		if err := kvSrc.Register(sources); err != nil {
			return fail(fmt.Errorf("register platform kv source: %w", err))
		}
		slog.Debug("Platform KV source registered", "url", cfg.Sources.PlatformKV.URL)
	}

	if cfg.Channel.URL != "" {
		monitor := health.NewMonitor()
		opts := append(cfg.Channel.Options(),
			channel.WithTenantContext(bctx),
			channel.WithStateCallback(health.BindChannel(monitor, "channel")),
		)
		mgr, err := channel.New(cfg.Channel.URL, opts...)
		if err != nil {
			return fail(fmt.Errorf("build channel manager: %w", err))
		}
		// A failed connect is not fatal: realtime bindings fall back
		// and the manager keeps reconnecting in the background.
		if err := mgr.Connect(ctx); err != nil {
			slog.Warn("Channel connect failed, realtime bindings will use fallbacks",
				"url", cfg.Channel.URL, "error", err)
		}
		cleanups = append(cleanups, func() { _ = mgr.Disconnect() })

		rtSrc, err := realtime.New(mgr)
		if err != nil {
			return fail(fmt.Errorf("build realtime source: %w", err))
		}
		cleanups = append(cleanups, func() { _ = rtSrc.Close() })
		if err := rtSrc.Register(sources); err != nil {
			return fail(fmt.Errorf("register realtime source: %w", err))
		}
		slog.Debug("Realtime source registered", "url", cfg.Channel.URL)
	}

	store, err := cache.NewFromConfig[any](ctx, cfg.Cache)
	if err != nil {
		return fail(fmt.Errorf("build cache: %w", err))
	}
	cleanups = append(cleanups, func() { _ = store.Close() })

	resolverOpts := append(cfg.Resolver.Options(), binding.WithCache(store))
	resolver := binding.New(sources, transforms, resolverOpts...)

	slog.Debug("Resolver ready", "sources", sources.IDs())
	return resolver, cleanup, nil
}

// newRESTSource builds the REST source from the config block.
func newRESTSource(cfg *config.Config) (*rest.Source, error) {
	restCfg := cfg.Sources.REST

	opts := []rest.Option{rest.WithRetryConfig(restCfg.Retry.ToRetryConfig())}
	if restCfg.Timeout > 0 {
		opts = append(opts, rest.WithClient(&http.Client{
			Timeout: time.Duration(restCfg.Timeout),
		}))
	}
	for key, value := range restCfg.Headers {
		opts = append(opts, rest.WithHeader(key, value))
	}

	return rest.New(restCfg.BaseURL, opts...)
}

// loadStaticData reads the static source snapshot. No path means an
// empty snapshot: static bindings then resolve to their fallbacks.
func loadStaticData(path string) (any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := readJSONFile(path)
	if err != nil {
		return nil, fmt.Errorf("read static data: %w", err)
	}
	return data, nil
}

// readJSONFile reads and decodes a JSON document of any shape.
func readJSONFile(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// writeDocument prints the hydrated document.
func writeDocument(out *os.File, doc any, compact bool) error {
	var (
		data []byte
		err  error
	)
	if compact {
		data, err = json.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	data = append(data, '\n')
	_, err = out.Write(data)
	return err
}
