// Package binding resolves declarative data bindings into concrete values.
//
// A Binding is a pointer written into a generated layout instead of a live
// value: it names a source adapter, a path into that source's data
// snapshot, an optional transform, a fallback, and optional cache and
// refresh policy. The Resolver turns that pointer into a value at render
// time:
//
//	reg := binding.NewRegistry()
//	reg.Register("metrics", metricsAdapter)
//
//	resolver := binding.New(reg, transform.NewRegistry(),
//	    binding.WithCache(valueCache),
//	    binding.WithTimeout(2*time.Second),
//	)
//
//	res := resolver.Resolve(ctx, binding.Binding{
//	    Path:      "portfolio.totalValue",
//	    Source:    "metrics",
//	    Transform: "currency",
//	    Fallback:  "$0",
//	}, binding.Context{TenantID: "t-1"})
//
// Resolution never returns an error. Validation failures, adapter
// failures, and transform lookups that miss all degrade to the binding's
// fallback, with the reason on Resolved.Error and Success false. A path
// that reaches no value is not a failure; it resolves to nil.
//
// ResolveMany fans a batch out concurrently with positionally aligned
// results and full sibling isolation. ResolveObject walks an arbitrary
// prop tree, deep-cloning it and replacing every structurally recognized
// binding with its resolved value. Concurrent resolutions of the same
// source+path+params share one adapter call.
//
// The Refresher owns the refreshIntervalMs side of the contract: it
// re-resolves registered bindings on per-binding tickers, rate-limited
// across the set, and pushes each result to a callback. Close stops every
// loop and waits for them.
package binding
