// Package client provides a load generator that drives the synchronization primitives.
//
// The Client runs one long-lived loop per participant as a job on its own
// worker pool. Each loop repeatedly makes a blocking call (Acquire, TrySend,
// TryReceive, Execute, WaitForMessage) and records how the call ended.
// A loop ends when its primitive starts rejecting calls or when the
// client is stopped.
//
// # Basic Usage
//
//	sem := semaphore.New(2)
//	ex := exchange.New[int]()
//
//	config := client.DefaultConfig()
//	config.SemaphoreClients = 5
//	cl := client.New(client.Targets{Semaphore: sem, Exchange: ex}, config)
//
//	cl.Start(ctx)
//	time.Sleep(10 * time.Second)
//	sem.Shutdown()
//	ex.Close()
//	cl.Stop()
//
//	snap := cl.Metrics(client.SourceSemaphore).Snapshot()
//	fmt.Printf("Total: %d, satisfied: %d\n", snap.Total, snap.Satisfied)
//
// # Chaos
//
// Participants implement chaos.Target: the chaos monkey may cancel their
// in-flight call or stretch their next hold time.
package client
