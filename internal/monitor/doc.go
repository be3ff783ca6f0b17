// Package monitor provides the lock/condition-variable building blocks shared
// by every blocking primitive in this module.
//
// A monitor is a sync.Mutex paired with one or more Cond values. Unlike
// sync.Cond, a Cond here can be waited on with a Deadline and a
// context.Context, which is what lets the primitives offer timeouts and
// cancellation while keeping all of their state under a single lock.
//
// # Basic Usage
//
//	var mu sync.Mutex
//	cond := monitor.NewCond(&mu)
//
//	mu.Lock()
//	defer mu.Unlock()
//	deadline := monitor.After(time.Second)
//	for !ready {
//	    if err := cond.Wait(ctx, deadline); err != nil {
//	        return monitor.Cancelled(err)
//	    }
//	    if deadline.Expired() {
//	        return errTimeout
//	    }
//	}
//
// # Errors
//
// ErrRejected is returned when a primitive has begun shutting down.
// ErrCancelled wraps the context error of a cancelled blocking call.
// Timeouts are never errors: they are reported as ordinary return values.
//
// # Identity
//
// Waiters are identified by an opaque ID issued when they enqueue, never by
// goroutine identity.
package monitor
