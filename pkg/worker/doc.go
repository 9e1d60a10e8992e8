// Package worker provides a bounded generic worker pool.
//
// A Pool runs a fixed number of goroutines draining a bounded queue of
// work items. Submit is non-blocking: when the queue is full the item
// is dropped and ErrQueueFull returned, which doubles as the
// backpressure signal. Statistics are always tracked; Prometheus
// metrics are opt-in via WithMetricsRegistry.
//
//	pool, err := worker.New(4, 64, func(ctx context.Context, job Job) error {
//	    return handle(ctx, job)
//	})
//	if err != nil {
//	    return err
//	}
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(job); errors.Is(err, worker.ErrQueueFull) {
//	    // overloaded, skip or back off
//	}
//
// Stop closes the queue and waits up to the given timeout for workers
// to finish. Cancelling the Start context makes workers exit without
// draining the queue, which is what the binding refresher relies on to
// drop pending re-resolutions at shutdown.
package worker
