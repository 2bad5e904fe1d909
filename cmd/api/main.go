// Package main implements the entry point for the TaskFlow API server,
// which accepts task submissions, records them durably, and hands them off
// to the worker fleet through the message broker.
package main

import (
	"context"
	"flag"
	"log"
	"os"
)

func main() {
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	ctx := context.Background()

	app, err := initializeApp(ctx, *migrate)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if *migrate {
		// Migrations already ran inside initializeApp; nothing to serve.
		os.Exit(0)
	}

	if err := app.Run(ctx); err != nil {
		app.logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}
