// Package metrics provides outcome and wait-time metrics for blocking calls.
//
// Metrics counts how each blocking call on a primitive ended (satisfied,
// timed out, rejected, or cancelled), and samples how long callers waited.
// It is thread-safe and optimized for high-concurrency scenarios.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	start := time.Now()
//	ok, err := sem.Acquire(ctx, time.Second)
//	m.Record(metrics.Classify(ok, err), time.Since(start))
//
//	fmt.Printf("Total: %d, ops/s: %.2f, P99 wait: %v\n",
//	    m.Total(), m.Throughput(), m.P99Wait())
//
//	snap := m.Snapshot()
//
// # Configuration
//
// Use NewWithConfig for custom settings:
//
//	config := metrics.Config{
//	    MaxLatencySamples: 5000, // More samples for P99 accuracy
//	}
//	m := metrics.NewWithConfig(config)
//
// # Thread Safety
//
// Counters are atomic; the wait-time sample buffer is guarded by a RWMutex.
package metrics
