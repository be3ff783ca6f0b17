// Package semaphore provides a counting semaphore with FIFO hand-off and
// graceful shutdown.
//
// Acquire takes a unit immediately when one is available. Otherwise the
// caller parks in a FIFO queue; Release hands its unit directly to the
// longest-waiting caller, so a released unit is never stolen by a newcomer
// ahead of a parked one.
//
// # Basic Usage
//
//	sem := semaphore.New(4)
//
//	ok, err := sem.Acquire(ctx, time.Second)
//	if err != nil {
//	    return err // monitor.ErrRejected or monitor.ErrCancelled
//	}
//	if !ok {
//	    return errBusy // timed out
//	}
//	defer sem.Release()
//
// # Graceful Shutdown
//
// Shutdown rejects every later Acquire and wakes parked callers, which fail
// with monitor.ErrRejected. AwaitTermination additionally waits until every
// unit has been released.
package semaphore
