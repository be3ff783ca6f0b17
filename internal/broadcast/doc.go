// Package broadcast provides a single-slot message broadcaster: every
// goroutine currently blocked in WaitForMessage receives the same next
// message passed to SendToAll.
//
// A broadcast is a snapshot over the receivers registered at the moment of
// the call. Receivers that start waiting afterwards wait for the next one.
// SendToAll returns the IDs of the notified receivers in registration order,
// and each receiver finds its own ID in the Message it gets back.
//
//	b := broadcast.New[int]()
//
//	go func() {
//	    msg, ok, err := b.WaitForMessage(ctx, 5*time.Second)
//	    // msg.Receiver is one of the IDs returned by SendToAll
//	    ...
//	}()
//
//	notified := b.SendToAll(42)
package broadcast
