// Package config loads, validates, and shares the runtime configuration.
//
// # Loading
//
// Load and LoadFile accept JSON or YAML and overlay the document on
// DefaultConfig, so a document only names the fields it changes:
//
//	cfg, err := config.LoadFile("canvaskit.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Durations are written as Go duration strings:
//
//	channel:
//	  url: wss://rt.example.com/channel
//	  heartbeat_interval: 30s
//	hydration:
//	  max_retries: 2
//	  backoff_base: 250ms
//
// A handful of connection targets can be overridden per environment:
// CANVASKIT_CHANNEL_URL, CANVASKIT_REST_BASE_URL, and
// CANVASKIT_PLATFORM_KV_URL.
//
// # Wiring
//
// Sub-configs convert directly into component options:
//
//	resolver := binding.New(sources, transforms, cfg.Resolver.Options()...)
//	hydrator := hydrate.New(cfg.Hydration.HydrateConfig())
//	mgr, err := channel.New(cfg.Channel.URL, cfg.Channel.Options()...)
//	store, err := cache.NewFromConfig[any](ctx, cfg.Cache)
//
// # Concurrent access
//
// SafeConfig serves readers a deep copy and swaps updates atomically
// after validation, for hosts that reload configuration at runtime.
package config
