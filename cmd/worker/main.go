// Package main implements the entry point for the TaskFlow worker, which
// consumes task-created events from the broker, drives each task through
// its lifecycle, and broadcasts every status transition for realtime
// observers.
package main

import (
	"context"
	"log"
	"os"
)

func main() {
	ctx := context.Background()

	app, err := initializeWorker(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize worker: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		app.logger.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}
}
