package ledger

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/garagehub/shopload/internal/domain"
	"github.com/garagehub/shopload/internal/repository"
)

// Reporter owns the per-load audit trail: entity tallies, the overall load
// status, and the human-facing report files support staff work from.
type Reporter struct {
	ledgers    repository.LedgerRepository
	exceptions repository.ExceptionRepository
	reportDir  string
}

// NewReporter creates a reporter writing report files under reportDir.
func NewReporter(ledgers repository.LedgerRepository, exceptions repository.ExceptionRepository, reportDir string) *Reporter {
	return &Reporter{
		ledgers:    ledgers,
		exceptions: exceptions,
		reportDir:  reportDir,
	}
}

// RecordTally persists one entity type's counts for the load. Called after
// each entity type finishes; reruns of a non-terminal load amend in place.
func (r *Reporter) RecordTally(ctx context.Context, load domain.Load, tally domain.EntityTally) error {
	return r.ledgers.UpsertTally(ctx, load.ID, tally)
}

// Reset clears a prior run's tallies before a rerun re-records them.
func (r *Reporter) Reset(ctx context.Context, load domain.Load) error {
	return r.ledgers.ClearTallies(ctx, load.ID)
}

// Tallies returns the load's recorded tallies.
func (r *Reporter) Tallies(ctx context.Context, load domain.Load) ([]domain.EntityTally, error) {
	return r.ledgers.ListTallies(ctx, load.ID)
}

// Finalize computes the load's terminal status from its tallies, writes the
// ledger document and per-entity exception reports, and returns the completed
// ledger record. Nothing here retries failed work; the reporter only reports.
func (r *Reporter) Finalize(ctx context.Context, load domain.Load) (domain.LedgerRecord, error) {
	tallies, err := r.ledgers.ListTallies(ctx, load.ID)
	if err != nil {
		return domain.LedgerRecord{}, fmt.Errorf("failed to load tallies: %w", err)
	}

	record := domain.LedgerRecord{
		LoadID:  load.ID,
		Key:     load.Key,
		Status:  overallStatus(tallies),
		Tallies: tallies,
	}
	if load.StartedAt != nil {
		record.StartedAt = *load.StartedAt
	}

	if err := r.writeReports(ctx, load, record); err != nil {
		// Report files are advisory; the queryable records are authoritative.
		log.Printf("[LEDGER] failed to write report files for load %s: %v", load.Key.LoadID, err)
	}

	return record, nil
}

// overallStatus folds per-entity outcomes into the load status: failed if any
// entity type failed outright, completed_with_exceptions if rows were
// excepted, completed otherwise.
func overallStatus(tallies []domain.EntityTally) domain.LoadStatus {
	excepted := 0
	for _, tally := range tallies {
		if tally.Status == domain.EntityStatusFailed {
			return domain.LoadStatusFailed
		}
		excepted += tally.Excepted
	}
	if excepted > 0 {
		return domain.LoadStatusCompletedWithExceptions
	}
	return domain.LoadStatusCompleted
}

func (r *Reporter) writeReports(ctx context.Context, load domain.Load, record domain.LedgerRecord) error {
	if r.reportDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.reportDir, 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}

	prefix := fmt.Sprintf("%s_%s_%s", load.Key.PartnerID, load.Key.ShopID, load.Key.LoadID)

	if err := r.writeLedgerFile(filepath.Join(r.reportDir, prefix+"_ledger.json"), record); err != nil {
		return err
	}

	if record.TotalExcepted() == 0 {
		return nil
	}

	all, err := r.exceptions.ListByLoad(ctx, load.ID)
	if err != nil {
		return fmt.Errorf("failed to list exceptions: %w", err)
	}

	byType := make(map[domain.EntityType][]domain.ExceptionRecord)
	for _, exc := range all {
		byType[exc.EntityType] = append(byType[exc.EntityType], exc)
	}

	for entityType, records := range byType {
		name := fmt.Sprintf("%s_%s_exceptions.csv", prefix, entityType)
		if err := writeExceptionReport(filepath.Join(r.reportDir, name), records); err != nil {
			return err
		}
		log.Printf("[LEDGER] wrote %d %s exceptions to %s", len(records), entityType, name)
	}
	return nil
}

func (r *Reporter) writeLedgerFile(path string, record domain.LedgerRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create ledger file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	return nil
}

// writeExceptionReport emits one CSV per entity type with enough detail for a
// human to locate and fix the offending source row.
func writeExceptionReport(path string, records []domain.ExceptionRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create exception report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"line_number", "external_id", "reason", "detail", "raw_values"}); err != nil {
		return fmt.Errorf("failed to write exception report header: %w", err)
	}

	for _, rec := range records {
		raw := ""
		if rec.RawValues != nil {
			encoded, err := json.Marshal(rec.RawValues)
			if err == nil {
				raw = string(encoded)
			}
		}
		row := []string{
			strconv.Itoa(rec.LineNumber),
			rec.ExternalID,
			string(rec.Reason),
			rec.Detail,
			raw,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write exception row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
