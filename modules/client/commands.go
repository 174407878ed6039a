package client

import (
	"context"
	"log"
)

// Command is a unit of panel work executed on the command loop. Running
// all mutations on one goroutine keeps the submit/reconcile/poll paths
// from interleaving mid-update.
type Command func(ctx context.Context)

// Commands is a bounded serial executor. Dispatch never blocks the
// caller; when the queue is full the command is dropped with a log line.
type Commands struct {
	queue chan Command
}

func NewCommands(size int) *Commands {
	if size <= 0 {
		size = 32
	}
	return &Commands{
		queue: make(chan Command, size),
	}
}

// Dispatch enqueues a command for execution.
func (c *Commands) Dispatch(cmd Command) bool {
	select {
	case c.queue <- cmd:
		return true
	default:
		log.Printf("commands: queue full, dropping command")
		return false
	}
}

// Run executes commands serially until ctx is cancelled.
func (c *Commands) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.queue:
			cmd(ctx)
		}
	}
}
