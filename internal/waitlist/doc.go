// Package waitlist provides an intrusive doubly-linked FIFO list of waiter
// records.
//
// Every blocking primitive in this module keeps its parked callers in a
// List. Enqueue returns a *Node handle that the caller keeps for the
// lifetime of its blocking call, so that a timing-out or cancelled waiter
// can unlink itself in O(1) without searching the list.
//
// # Basic Usage
//
//	var l waitlist.List[*request]
//	node := l.Enqueue(req)
//	// ... later, satisfier side:
//	if head := l.PullHead(); head != nil {
//	    serve(head.Value)
//	}
//	// ... or, waiter side on timeout:
//	l.Remove(node)
//
// # Thread Safety
//
// A List performs no locking of its own. Callers must hold the monitor
// lock of the primitive that owns the list for every operation.
package waitlist
