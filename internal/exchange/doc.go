// Package exchange provides a bounded multi-party message exchange: a
// rendezvous where producers offer single items and consumers receive an
// exact batch of items once enough offers are available.
//
// Both producers and consumers are served in FIFO order. A producer's
// TrySend returns the ID of the consumer that took its item, so each side
// learns who it met.
//
// # Basic Usage
//
//	ex := exchange.New[string]()
//
//	// consumer
//	batch, err := ex.TryReceive(ctx, 3, time.Second)
//	if err == nil && batch.Complete() {
//	    process(batch.Items)
//	}
//
//	// producers
//	receiver, ok, err := ex.TrySend(ctx, "job-1", time.Second)
//
// # Short Batches
//
// When a waiting consumer at the head of the queue times out or is
// cancelled, it withdraws and drains whatever offers are queued, returning
// them as a short batch. Producers are therefore never left parked behind a
// consumer that gave up.
package exchange
