// Package retry provides capped exponential backoff for transient database
// failures. Batch application is idempotent, so retrying a failed commit is
// always safe.
package retry

import (
	"context"
	"errors"
	"log"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/garagehub/shopload/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// Transient PostgreSQL error classes and codes.
// See https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassConnectionException    = "08"
	pgClassInsufficientResources  = "53"
	pgClassOperatorIntervention   = "57"
	pgCodeSerializationFailure    = "40001"
	pgCodeDeadlockDetected        = "40P01"
	pgCodeLockNotAvailable        = "55P03"
)

// IsTransient reports whether an error is temporary and worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// A lost crosswalk insert race converges on retry: the next attempt
	// resolves the winner's production id through the lookup path.
	if errors.Is(err, domain.ErrCrosswalkConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, pgClassConnectionException) ||
			strings.HasPrefix(pgErr.Code, pgClassInsufficientResources) ||
			strings.HasPrefix(pgErr.Code, pgClassOperatorIntervention) {
			return true
		}
		switch pgErr.Code {
		case pgCodeSerializationFailure, pgCodeDeadlockDetected, pgCodeLockNotAvailable:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"unexpected eof",
		"server closed the connection",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Executor retries an operation with exponential backoff while its error
// stays transient. Safe for concurrent use.
type Executor struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// NewExecutor creates an executor allowing maxAttempts total attempts.
func NewExecutor(maxAttempts int, initialDelay, maxDelay time.Duration) *Executor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Executor{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// DefaultExecutor returns the executor used for batch commits.
func DefaultExecutor() *Executor {
	return NewExecutor(3, 100*time.Millisecond, 2*time.Second)
}

// Execute runs the operation, retrying on transient errors until attempts run
// out or the context ends. The last error is returned unchanged.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.nextDelay(attempt - 1)
			log.Printf("[RETRY] attempt %d/%d after %v: %v", attempt+1, e.maxAttempts, delay, lastErr)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// nextDelay doubles per attempt, capped at maxDelay, with 10% jitter.
func (e *Executor) nextDelay(attempt int) time.Duration {
	delay := float64(e.initialDelay) * math.Pow(2, float64(attempt))
	if delay > float64(e.maxDelay) {
		delay = float64(e.maxDelay)
	}
	delay *= 1 + 0.1*(rand.Float64()*2-1)
	return time.Duration(delay)
}
