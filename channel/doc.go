// Package channel maintains the real-time WebSocket connection that
// carries live updates between the canvas runtime and the platform.
//
// A Manager wraps one logical connection. Connect starts a supervisor
// goroutine that dials the server and keeps the connection alive:
// unclean closes and dial failures are retried with exponential backoff
// (base interval doubling per attempt up to a cap) until the configured
// attempt limit is exhausted, at which point the manager parks in the
// error state until Connect is called again. A clean server close or an
// explicit Disconnect returns the manager to the disconnected state
// without retrying. Progress is observable through State and an optional
// state-change callback.
//
// Heartbeats are application-level JSON ping/pong envelopes rather than
// WebSocket control frames, matching the channel server's protocol. The
// manager pings on a fixed interval and forces a reconnect when a pong
// does not arrive within the heartbeat timeout.
//
// Send never blocks on the network. Messages are placed in a bounded
// circular queue that the session writer drains in order; while the
// connection is down the queue simply holds them, and the next
// successful open flushes the backlog oldest first, after an
// authenticate envelope (when a tenant context is configured) and a
// subscribe replay for every active topic. On overflow the oldest
// queued message is dropped.
//
// Subscribe registers per-topic handlers with optional per-handler
// filters. The wildcard topic "*" observes all data messages. Handlers
// run on a single delivery goroutine in arrival order. Inbound frames
// with unrecognized types are ignored, so protocol additions on the
// server side are safe.
package channel
