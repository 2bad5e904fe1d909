// Package bootstrap provides the shared connection retry policy used by
// every network-backed component at process startup.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config controls the retry policy for establishing one connection.
type Config struct {
	// Attempts is the maximum number of connection attempts before the
	// final error is propagated. If zero or negative, defaults to 1.
	Attempts int

	// Backoff is the base delay B for linear backoff: before attempt k+1
	// the driver sleeps B × k.
	Backoff time.Duration
}

// Connector attempts to establish a single connection. It is retried
// according to Config until it returns nil.
type Connector func(ctx context.Context) error

// sleep is swapped out in tests to observe the backoff schedule without
// waiting on the wall clock.
var sleep = sleepContext

// Connect runs the connector up to cfg.Attempts times, sleeping
// cfg.Backoff × attempt between failures (linear backoff). On success it
// returns nil immediately. After the final failure the last error is
// returned wrapped; the caller decides whether the dependency is mandatory
// (abort startup) or optional (degrade and continue).
func Connect(
	ctx context.Context,
	logger *slog.Logger,
	name string,
	cfg Config,
	connect Connector,
) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s bootstrap canceled: %w", name, err)
		}

		lastErr = connect(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("dependency reachable after retries",
					"dependency", name,
					"attempt", attempt)
			}
			return nil
		}

		if attempt == attempts {
			break
		}

		wait := cfg.Backoff * time.Duration(attempt)
		logger.Warn("dependency unavailable, retrying",
			"dependency", name,
			"attempt", attempt,
			"max_attempts", attempts,
			"retry_in", wait,
			"error", lastErr)

		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("%s bootstrap canceled: %w", name, err)
		}
	}

	logger.Error("dependency unreachable after all attempts",
		"dependency", name,
		"attempts", attempts,
		"error", lastErr)
	return fmt.Errorf("failed to connect to %s after %d attempts: %w", name, attempts, lastErr)
}

// sleepContext waits for the duration or until the context is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
