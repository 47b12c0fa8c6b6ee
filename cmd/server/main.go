// Package main implements the entry point for the edgegate server, a small
// API gateway core enforcing the REST conventions shared by downstream
// services: correlation IDs, idempotent creation, problem+json errors, ETag
// preconditions, pagination envelopes and health probes.
package main

import (
	"context"
	"log"

	"github.com/mwhitford/edgegate/internal/idempotency"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApp(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Expired idempotency records are also skipped on lookup; the sweeper
	// just keeps the backing store from growing without bound.
	go idempotency.RunSweeper(ctx, app.sweeper, app.config.Idempotency.SweepInterval, app.logger)

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
