package repository

import (
	"context"
	"time"

	"github.com/garagehub/shopload/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LoadRepository defines the interface for load lifecycle records.
type LoadRepository interface {
	Create(ctx context.Context, load domain.Load) (domain.Load, error)
	GetByKey(ctx context.Context, key domain.LoadKey) (domain.Load, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LoadStatus) error
	Finish(ctx context.Context, id uuid.UUID, status domain.LoadStatus) error
}

// StagingRepository defines the interface for the generic staging row store.
// Rows are owned by their load and entity type; reruns either reuse the
// existing set untouched or replace it wholesale.
type StagingRepository interface {
	Count(ctx context.Context, loadID uuid.UUID, entityType domain.EntityType) (int, error)
	Insert(ctx context.Context, loadID uuid.UUID, entityType domain.EntityType, rows []domain.StagingRow) (int, error)
	Delete(ctx context.Context, loadID uuid.UUID, entityType domain.EntityType) error
	List(ctx context.Context, loadID uuid.UUID, entityType domain.EntityType) ([]domain.StagingRow, error)
	// PurgeOlderThan enforces the audit-retention window across all loads.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CrosswalkRepository maps external source identifiers to production
// identifiers. All methods run inside the caller's batch transaction so
// resolution and application commit together.
type CrosswalkRepository interface {
	Lookup(ctx context.Context, tx pgx.Tx, key domain.LoadKey, entityType domain.EntityType, externalID string) (uuid.UUID, bool, error)
	Insert(ctx context.Context, tx pgx.Tx, entry domain.CrosswalkEntry) error
}

// ProductionRepository applies typed entities to the production tables.
// Every upsert is keyed by the crosswalk-resolved production identifier;
// the returned flag reports insert (true) versus update (false).
type ProductionRepository interface {
	UpsertCustomer(ctx context.Context, tx pgx.Tx, id uuid.UUID, key domain.LoadKey, c domain.Customer) (bool, error)
	UpsertVehicle(ctx context.Context, tx pgx.Tx, id uuid.UUID, customerID uuid.UUID, key domain.LoadKey, v domain.Vehicle) (bool, error)
	UpsertInvoice(ctx context.Context, tx pgx.Tx, id uuid.UUID, customerID uuid.UUID, key domain.LoadKey, inv domain.Invoice) (bool, error)
	UpsertLineItem(ctx context.Context, tx pgx.Tx, id uuid.UUID, invoiceID uuid.UUID, parentID *uuid.UUID, key domain.LoadKey, li domain.LineItem) (bool, error)
	UpsertPayment(ctx context.Context, tx pgx.Tx, id uuid.UUID, invoiceID uuid.UUID, key domain.LoadKey, p domain.Payment) (bool, error)
	UpsertInventoryPart(ctx context.Context, tx pgx.Tx, id uuid.UUID, key domain.LoadKey, part domain.InventoryPart) (bool, error)
	UpsertSupplier(ctx context.Context, tx pgx.Tx, id uuid.UUID, key domain.LoadKey, s domain.Supplier) (bool, error)
}

// LedgerRepository stores per-entity tallies for a load. Tallies are
// replaced per run while the load is non-terminal.
type LedgerRepository interface {
	UpsertTally(ctx context.Context, loadID uuid.UUID, tally domain.EntityTally) error
	ListTallies(ctx context.Context, loadID uuid.UUID) ([]domain.EntityTally, error)
	ClearTallies(ctx context.Context, loadID uuid.UUID) error
}

// ExceptionRepository stores row-level application failures. Records are
// append-only; absence of a record is the only signal of success.
type ExceptionRepository interface {
	Record(ctx context.Context, rec domain.ExceptionRecord) error
	ListByLoad(ctx context.Context, loadID uuid.UUID) ([]domain.ExceptionRecord, error)
}
