// Package worker provides a fixed-size goroutine pool with two-phase
// graceful shutdown.
//
// The Pool starts its workers when it is created. Jobs are handed directly
// to an idle worker when one is parked; otherwise they wait in a FIFO queue.
//
// # Basic Usage
//
//	pool := worker.NewPool(4) // 4 workers
//
//	for i := 0; i < 100; i++ {
//	    if err := pool.Execute(func() {
//	        // do work
//	    }); err != nil {
//	        // monitor.ErrRejected: the pool is shutting down
//	    }
//	}
//
//	if err := pool.ShutdownAndWait(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// ShutdownAndWait stops admitting new jobs, wakes idle workers, and blocks
// until every queued job has run and every worker has exited. Jobs accepted
// before shutdown always run.
//
// A panicking job does not take its worker down: the panic is recovered,
// logged, and reported by Err.
package worker
