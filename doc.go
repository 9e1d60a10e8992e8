// Package canvaskit is the runtime behind data-bound canvas layouts: it
// resolves declarative binding expressions against pluggable data
// sources, hydrates layouts from multiple endpoints in parallel, and
// keeps them live over a managed WebSocket channel.
//
// # Overview
//
// A canvas layout is a JSON tree in which any string value may be a
// binding expression:
//
//	{{source:path.to[0].value | transform}}
//
// CanvasKit is the engine that turns that tree into data. It has three
// cooperating subsystems:
//
//	┌─────────────────────────────────────┐
//	│          Binding Resolver           │  Path evaluation,
//	│  (sources, transforms, TTL cache)   │  fallbacks, caching
//	└─────────────────────────────────────┘
//	           ↑ feeds on
//	┌─────────────────────────────────────┐
//	│            Hydrator                 │  Parallel endpoint
//	│   (fan-out fetch, retry, merge)     │  fetch and merge
//	└─────────────────────────────────────┘
//	           ↑ refreshed by
//	┌─────────────────────────────────────┐
//	│         Channel Manager             │  Reconnect, heartbeat,
//	│   (WebSocket, topic multiplexing)   │  topic subscriptions
//	└─────────────────────────────────────┘
//
// Each subsystem stands alone: a host can resolve bindings against
// purely static data, hydrate without a realtime channel, or run a
// channel with no resolver at all.
//
// # Resolution Pipeline
//
// A binding names a source, a path into that source's data, and an
// optional transform chain. Resolution walks a fixed pipeline:
//
//  1. Validate the binding (known source, known transforms).
//  2. Serve from the TTL cache when the entry is fresh.
//  3. Fetch from the source adapter, deduplicating identical
//     in-flight fetches.
//  4. Evaluate the path expression against the fetched document.
//  5. Apply transforms in declaration order.
//  6. Write the result through the cache.
//  7. On failure, fall back to the binding's declared fallback value.
//
// Resolution never returns a Go error to the caller: every outcome is
// a Resolved value whose Success flag and Error string carry the
// failure detail, so one broken tile never takes down a canvas.
//
// # Framework Packages
//
// Core engine:
//   - binding: resolver, source adapter registry, refresher
//   - pathexpr: path expression parser and evaluator
//   - transform: named value transform catalog
//   - hydrate: parallel multi-endpoint hydration
//   - channel: WebSocket channel manager
//
// Source adapters:
//   - source/static: in-memory documents
//   - source/rest: HTTP endpoints with retry
//   - source/realtime: channel-backed live topics
//   - source/platformkv: NATS JetStream key-value buckets
//
// Infrastructure:
//   - config: typed runtime configuration (JSON/YAML)
//   - errors: classified error handling
//   - health: component status monitoring
//   - metric: Prometheus metrics
//   - pkg/buffer: bounded ring buffer
//   - pkg/cache: generic cache strategies
//   - pkg/retry: retry policies
//   - pkg/timestamp: canonical timestamp handling
//   - pkg/worker: bounded worker pools
//
// # Usage
//
// Resolve a layout against a static document and a REST API:
//
//	sources := binding.NewRegistry()
//
//	staticSrc := static.New(map[string]any{"title": "Fleet Status"})
//	staticSrc.Register(sources)
//
//	restSrc, _ := rest.New("https://api.example.com")
//	restSrc.Register(sources)
//
//	resolver := binding.New(sources, transform.NewRegistry(),
//	    binding.WithCache(store),
//	)
//
//	resolved := resolver.ResolveObject(ctx, layout, binding.Context{
//	    TenantID: "tenant-1",
//	})
//
// Keep it live:
//
//	mgr, _ := channel.New("wss://rt.example.com/ws",
//	    channel.WithTenantContext(bctx),
//	)
//	_ = mgr.Connect(ctx)
//
//	rtSrc, _ := realtime.New(mgr)
//	rtSrc.Register(sources)
//
// # Design Principles
//
// Failure containment:
//   - Per-binding fallbacks, never per-canvas errors
//   - Partial hydration merges what succeeded
//   - Channel degradation downgrades realtime bindings to fallbacks
//
// Bounded resources:
//   - TTL caches with size caps
//   - Bounded outbound queues (oldest dropped on overflow)
//   - Worker pools behind refresh loops
//
// Testability:
//   - Explicit dependencies (no globals)
//   - Adapter and dialer seams for in-process fakes
package canvaskit
