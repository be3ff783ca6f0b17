// Package main is the entry point for monitorsync.
package main

import (
	"fmt"
	"os"

	"monitorsync/internal/cli"
)

const (
	cmdName   = "monitorsync"
	shortDesc = "Monitor-based synchronization primitives under load and chaos."
	longDesc  = `monitorsync drives a counting semaphore, a batched message exchange,
a worker pool and a message broadcaster with concurrent participants,
optionally cancels their blocking calls at random, then shuts every
primitive down and reports whether each one terminated cleanly.
`
)

func main() {
	cmd := cli.NewRootCmd(cmdName, shortDesc, longDesc)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
