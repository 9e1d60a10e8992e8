// Package health tracks the operational state of the runtime's moving
// pieces. A Monitor holds the latest Status per named component; hosts
// update it from their own probes and serve AggregateHealth from a
// status endpoint.
//
// The channel manager is wired in with BindChannel:
//
//	mon := health.NewMonitor()
//	mgr, err := channel.New(url,
//		channel.WithStateCallback(health.BindChannel(mon, "channel")))
//
// Aggregation is pessimistic: any unhealthy component makes the system
// unhealthy; otherwise any degraded component makes it degraded.
package health
