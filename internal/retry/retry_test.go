package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/garagehub/shopload/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"connection class", &pgconn.PgError{Code: "08006"}, true},
		{"insufficient resources", &pgconn.PgError{Code: "53300"}, true},
		{"operator intervention", &pgconn.PgError{Code: "57P01"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"not null violation", &pgconn.PgError{Code: "23502"}, false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"plain validation error", errors.New("value too long for column"), false},
		{"lost crosswalk race", fmt.Errorf("%w: customers c1", domain.ErrCrosswalkConflict), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.transient {
				t.Fatalf("IsTransient(%v) = %v, want %v", tt.err, got, tt.transient)
			}
		})
	}
}

func TestIsTransientUnwrapsPgError(t *testing.T) {
	wrapped := errors.Join(errors.New("applying batch"), &pgconn.PgError{Code: "40P01"})
	if !IsTransient(wrapped) {
		t.Fatalf("wrapped deadlock should be transient")
	}
}

func TestExecuteSucceedsAfterTransientFailures(t *testing.T) {
	exec := NewExecutor(3, time.Millisecond, 5*time.Millisecond)

	attempts := 0
	err := exec.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteStopsOnPermanentError(t *testing.T) {
	exec := NewExecutor(3, time.Millisecond, 5*time.Millisecond)

	permanent := &pgconn.PgError{Code: "23505"}
	attempts := 0
	err := exec.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error back, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("permanent errors must not be retried, got %d attempts", attempts)
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	exec := NewExecutor(2, time.Millisecond, 5*time.Millisecond)

	transient := &pgconn.PgError{Code: "40P01"}
	attempts := 0
	err := exec.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("expected the transient error back, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	exec := NewExecutor(5, 50*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := exec.Execute(ctx, func(ctx context.Context) error {
		attempts++
		return &pgconn.PgError{Code: "40001"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", attempts)
	}
}
