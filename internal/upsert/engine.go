package upsert

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/garagehub/shopload/internal/domain"
	"github.com/garagehub/shopload/internal/repository"
	"github.com/garagehub/shopload/internal/retry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Engine applies staged rows to the production tables in dependency order.
//
// The chain [customers, vehicles, invoices, line_items, payments] is strictly
// sequential: an entity type starts only after its predecessor finished for
// this load. inventory_parts and suppliers have no parents and run
// concurrently with the chain. Every row's effect is keyed by its crosswalk
// mapping, so re-running the engine converges to the same production state.
type Engine struct {
	txs        TxRunner
	staging    repository.StagingRepository
	crosswalk  repository.CrosswalkRepository
	production repository.ProductionRepository
	exceptions repository.ExceptionRepository
	retrier    *retry.Executor
	batchSize  int
}

// NewEngine creates an upsert engine. batchSize is a performance knob only;
// correctness does not depend on it.
func NewEngine(
	txs TxRunner,
	staging repository.StagingRepository,
	crosswalk repository.CrosswalkRepository,
	production repository.ProductionRepository,
	exceptions repository.ExceptionRepository,
	retrier *retry.Executor,
	batchSize int,
) *Engine {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retrier == nil {
		retrier = retry.DefaultExecutor()
	}
	return &Engine{
		txs:        txs,
		staging:    staging,
		crosswalk:  crosswalk,
		production: production,
		exceptions: exceptions,
		retrier:    retrier,
		batchSize:  batchSize,
	}
}

// Plan names the entity types this run applies. Skipped and staging-failed
// types are left out by the caller; a missing chain type cuts the chain there
// because downstream parents cannot resolve.
type Plan struct {
	Chain       []domain.EntityType
	Independent []domain.EntityType
}

// Outcome reports one entity type's application result.
type Outcome struct {
	Staged   int
	Inserted int
	Updated  int
	Excepted int
	Err      error
}

// Run applies the planned entity types and returns one outcome per type. An
// entity-level failure inside the chain aborts the remaining chain types;
// independent types are unaffected by chain failures and by each other.
func (e *Engine) Run(ctx context.Context, load domain.Load, plan Plan) map[domain.EntityType]Outcome {
	outcomes := make(map[domain.EntityType]Outcome)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, t := range plan.Independent {
		wg.Add(1)
		go func(t domain.EntityType) {
			defer wg.Done()
			out := e.applyEntity(ctx, load, t, nil)
			mu.Lock()
			outcomes[t] = out
			mu.Unlock()
		}(t)
	}

	excluded := newExclusions()
	for i, t := range plan.Chain {
		out := e.applyEntity(ctx, load, t, excluded)
		mu.Lock()
		outcomes[t] = out
		mu.Unlock()

		if out.Err != nil {
			log.Printf("[UPSERT] %s failed, aborting remaining chain: %v", t, out.Err)
			for _, rest := range plan.Chain[i+1:] {
				mu.Lock()
				outcomes[rest] = Outcome{Err: fmt.Errorf("upstream entity type %s failed", t)}
				mu.Unlock()
			}
			break
		}
	}

	wg.Wait()
	return outcomes
}

func (e *Engine) applyEntity(ctx context.Context, load domain.Load, t domain.EntityType, excluded *exclusions) Outcome {
	var out Outcome

	rows, err := e.staging.List(ctx, load.ID, t)
	if err != nil {
		out.Err = fmt.Errorf("failed to list staged %s: %w", t, err)
		return out
	}
	out.Staged = len(rows)

	var inLoad map[string]bool
	if t == domain.EntityLineItem {
		// Parent references resolve against this load's own rows only; a
		// mapping left in the crosswalk by an earlier load must not link.
		inLoad = make(map[string]bool, len(rows))
		for _, row := range rows {
			if id := row.Value(externalIDColumn(t)); id != "" {
				inLoad[id] = true
			}
		}

		var cyclic []domain.StagingRow
		rows, cyclic = orderSelfParents(rows)
		for _, row := range cyclic {
			e.recordException(ctx, load, t, row, domain.ReasonValidationFailed, "row is part of a parent-reference cycle")
			if excluded != nil {
				excluded.add(t, row.Value(externalIDColumn(t)))
			}
			out.Excepted++
		}
	}

	for start := 0; start < len(rows); start += e.batchSize {
		end := start + e.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		inserted, updated, pending, err := e.applyBatch(ctx, load, t, batch, excluded, inLoad)
		if err != nil {
			out.Err = fmt.Errorf("failed to apply %s batch at row %d: %w", t, start, err)
			return out
		}

		out.Inserted += inserted
		out.Updated += updated
		out.Excepted += len(pending)
		for _, exc := range pending {
			if err := e.exceptions.Record(ctx, exc); err != nil {
				log.Printf("[UPSERT] failed to record exception for %s line %d: %v", t, exc.LineNumber, err)
			}
			if excluded != nil {
				excluded.add(t, exc.ExternalID)
			}
		}
	}

	log.Printf("[UPSERT] %s: %d inserted, %d updated, %d excepted", t, out.Inserted, out.Updated, out.Excepted)
	return out
}

// applyBatch runs one batch inside a transaction. The whole attempt is
// retried on transient failures; tallies, exceptions, and exclusions are
// rebuilt per attempt so a retry never double-counts. Exceptions and
// exclusions take effect only after the batch commits.
func (e *Engine) applyBatch(ctx context.Context, load domain.Load, t domain.EntityType, batch []domain.StagingRow, excluded *exclusions, inLoad map[string]bool) (inserted, updated int, pending []domain.ExceptionRecord, err error) {
	err = e.retrier.Execute(ctx, func(ctx context.Context) error {
		inserted, updated = 0, 0
		pending = nil
		attemptExcluded := newExclusions()

		return e.txs.WithTx(ctx, func(tx pgx.Tx) error {
			for _, row := range batch {
				wasInserted, exc, rowErr := e.applyRow(ctx, tx, load, t, row, excluded, attemptExcluded, inLoad)
				if rowErr != nil {
					return rowErr
				}
				if exc != nil {
					pending = append(pending, *exc)
					attemptExcluded.add(t, exc.ExternalID)
					continue
				}
				if wasInserted {
					inserted++
				} else {
					updated++
				}
			}
			return nil
		})
	})
	return inserted, updated, pending, err
}

// applyRow applies one staged row. A row-level failure becomes an exception
// and never aborts the batch; only infrastructure errors propagate. The write
// itself runs under a savepoint so a rejected row leaves the rest of the
// batch's work intact.
func (e *Engine) applyRow(ctx context.Context, tx pgx.Tx, load domain.Load, t domain.EntityType, row domain.StagingRow, committed, attempt *exclusions, inLoad map[string]bool) (bool, *domain.ExceptionRecord, error) {
	apply, externalID, exc := e.prepareRow(ctx, tx, load, t, row, committed, attempt, inLoad)
	if exc != nil {
		return false, exc, nil
	}

	// Resolve the row's own production id through the crosswalk; reruns find
	// the existing mapping and update in place.
	id, found, err := e.crosswalk.Lookup(ctx, tx, load.Key, t, externalID)
	if err != nil {
		return false, nil, err
	}
	if !found {
		id = uuid.New()
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return false, nil, err
	}

	wasInserted, err := apply(sp, id)
	if err == nil && !found {
		err = e.crosswalk.Insert(ctx, sp, domain.CrosswalkEntry{
			PartnerID:    load.Key.PartnerID,
			ShopID:       load.Key.ShopID,
			EntityType:   t,
			ExternalID:   externalID,
			ProductionID: id,
		})
	}
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return false, nil, rbErr
		}
		if retry.IsTransient(err) {
			return false, nil, err
		}
		return false, e.newException(load, t, row, domain.ReasonValidationFailed, err.Error()), nil
	}
	if err := sp.Commit(ctx); err != nil {
		return false, nil, err
	}

	return wasInserted, nil, nil
}

// prepareRow builds the typed entity and resolves its parents. It returns a
// closure that performs the production write on the savepoint once the row's
// own id is known, or an exception if the row cannot be applied.
func (e *Engine) prepareRow(ctx context.Context, tx pgx.Tx, load domain.Load, t domain.EntityType, row domain.StagingRow, committed, attempt *exclusions, inLoad map[string]bool) (func(tx pgx.Tx, id uuid.UUID) (bool, error), string, *domain.ExceptionRecord) {
	resolveParent := func(parentType domain.EntityType, parentExternalID string) (uuid.UUID, *domain.ExceptionRecord) {
		if committed.has(parentType, parentExternalID) || attempt.has(parentType, parentExternalID) {
			return uuid.Nil, e.newException(load, t, row, domain.ReasonUnresolvedParent,
				fmt.Sprintf("parent %s %q was excluded in this load", parentType, parentExternalID))
		}
		parentID, found, err := e.crosswalk.Lookup(ctx, tx, load.Key, parentType, parentExternalID)
		if err != nil || !found {
			detail := fmt.Sprintf("parent %s %q not found in crosswalk", parentType, parentExternalID)
			if err != nil {
				detail = fmt.Sprintf("parent %s %q lookup failed: %v", parentType, parentExternalID, err)
			}
			return uuid.Nil, e.newException(load, t, row, domain.ReasonUnresolvedParent, detail)
		}
		return parentID, nil
	}

	switch t {
	case domain.EntityCustomer:
		c, err := buildCustomer(row)
		if err != nil {
			return nil, "", e.newException(load, t, row, domain.ReasonValidationFailed, err.Error())
		}
		return func(tx pgx.Tx, id uuid.UUID) (bool, error) {
			return e.production.UpsertCustomer(ctx, tx, id, load.Key, c)
		}, c.ExternalID, nil

	case domain.EntityVehicle:
		v, err := buildVehicle(row)
		if err != nil {
			return nil, "", e.newException(load, t, row, domain.ReasonValidationFailed, err.Error())
		}
		customerID, exc := resolveParent(domain.EntityCustomer, v.CustomerExternalID)
		if exc != nil {
			return nil, "", exc
		}
		return func(tx pgx.Tx, id uuid.UUID) (bool, error) {
			return e.production.UpsertVehicle(ctx, tx, id, customerID, load.Key, v)
		}, v.ExternalID, nil

	case domain.EntityInvoice:
		inv, err := buildInvoice(row)
		if err != nil {
			return nil, "", e.newException(load, t, row, domain.ReasonValidationFailed, err.Error())
		}
		customerID, exc := resolveParent(domain.EntityCustomer, inv.CustomerExternalID)
		if exc != nil {
			return nil, "", exc
		}
		return func(tx pgx.Tx, id uuid.UUID) (bool, error) {
			return e.production.UpsertInvoice(ctx, tx, id, customerID, load.Key, inv)
		}, inv.ExternalID, nil

	case domain.EntityLineItem:
		li, err := buildLineItem(row)
		if err != nil {
			return nil, "", e.newException(load, t, row, domain.ReasonValidationFailed, err.Error())
		}
		invoiceID, exc := resolveParent(domain.EntityInvoice, li.InvoiceExternalID)
		if exc != nil {
			return nil, "", exc
		}
		var parentID *uuid.UUID
		if li.ParentExternalID != "" {
			if committed.has(t, li.ParentExternalID) || attempt.has(t, li.ParentExternalID) {
				return nil, "", e.newException(load, t, row, domain.ReasonUnresolvedParent,
					fmt.Sprintf("parent line item %q was excluded in this load", li.ParentExternalID))
			}
			// Membership in this load's row set decides resolvability; a
			// crosswalk mapping from an earlier load never links line items
			// across loads.
			if !inLoad[li.ParentExternalID] {
				return nil, "", e.newException(load, t, row, domain.ReasonUnresolvedSelfParent,
					fmt.Sprintf("parent line item %q is not part of this load", li.ParentExternalID))
			}
			// Self-parent ordering applied the in-load parent in an earlier
			// row of this run, so its mapping is visible here.
			pid, found, err := e.crosswalk.Lookup(ctx, tx, load.Key, t, li.ParentExternalID)
			if err != nil {
				return nil, "", e.newException(load, t, row, domain.ReasonUnresolvedParent,
					fmt.Sprintf("parent line item %q lookup failed: %v", li.ParentExternalID, err))
			}
			if !found {
				return nil, "", e.newException(load, t, row, domain.ReasonUnresolvedSelfParent,
					fmt.Sprintf("parent line item %q was not applied in this load", li.ParentExternalID))
			}
			parentID = &pid
		}
		return func(tx pgx.Tx, id uuid.UUID) (bool, error) {
			return e.production.UpsertLineItem(ctx, tx, id, invoiceID, parentID, load.Key, li)
		}, li.ExternalID, nil

	case domain.EntityPayment:
		p, err := buildPayment(row)
		if err != nil {
			return nil, "", e.newException(load, t, row, domain.ReasonValidationFailed, err.Error())
		}
		invoiceID, exc := resolveParent(domain.EntityInvoice, p.InvoiceExternalID)
		if exc != nil {
			return nil, "", exc
		}
		return func(tx pgx.Tx, id uuid.UUID) (bool, error) {
			return e.production.UpsertPayment(ctx, tx, id, invoiceID, load.Key, p)
		}, p.ExternalID, nil

	case domain.EntityInventoryPart:
		part, err := buildInventoryPart(row)
		if err != nil {
			return nil, "", e.newException(load, t, row, domain.ReasonValidationFailed, err.Error())
		}
		return func(tx pgx.Tx, id uuid.UUID) (bool, error) {
			return e.production.UpsertInventoryPart(ctx, tx, id, load.Key, part)
		}, part.ExternalID, nil

	case domain.EntitySupplier:
		s, err := buildSupplier(row)
		if err != nil {
			return nil, "", e.newException(load, t, row, domain.ReasonValidationFailed, err.Error())
		}
		return func(tx pgx.Tx, id uuid.UUID) (bool, error) {
			return e.production.UpsertSupplier(ctx, tx, id, load.Key, s)
		}, s.ExternalID, nil
	}

	return nil, "", e.newException(load, t, row, domain.ReasonValidationFailed, fmt.Sprintf("unknown entity type %s", t))
}

func (e *Engine) newException(load domain.Load, t domain.EntityType, row domain.StagingRow, reason domain.ReasonCode, detail string) *domain.ExceptionRecord {
	return &domain.ExceptionRecord{
		ID:         uuid.New(),
		LoadID:     load.ID,
		EntityType: t,
		LineNumber: row.LineNumber,
		ExternalID: row.Value(externalIDColumn(t)),
		Reason:     reason,
		Detail:     detail,
		RawValues:  row.Values,
		CreatedAt:  time.Now().UTC(),
	}
}

func (e *Engine) recordException(ctx context.Context, load domain.Load, t domain.EntityType, row domain.StagingRow, reason domain.ReasonCode, detail string) {
	exc := e.newException(load, t, row, reason, detail)
	if err := e.exceptions.Record(ctx, *exc); err != nil {
		log.Printf("[UPSERT] failed to record exception for %s line %d: %v", t, exc.LineNumber, err)
	}
}

// exclusions tracks external ids excepted earlier in this load, per entity
// type, for cascading exclusion of dependent rows. Only the chain goroutine
// touches it, so no locking is needed.
type exclusions struct {
	byType map[domain.EntityType]map[string]bool
}

func newExclusions() *exclusions {
	return &exclusions{byType: make(map[domain.EntityType]map[string]bool)}
}

func (e *exclusions) add(t domain.EntityType, externalID string) {
	if e == nil || externalID == "" {
		return
	}
	set := e.byType[t]
	if set == nil {
		set = make(map[string]bool)
		e.byType[t] = set
	}
	set[externalID] = true
}

func (e *exclusions) has(t domain.EntityType, externalID string) bool {
	if e == nil {
		return false
	}
	return e.byType[t][externalID]
}
