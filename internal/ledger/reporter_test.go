package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/garagehub/shopload/internal/domain"

	"github.com/google/uuid"
)

type stubLedgerRepo struct {
	tallies map[uuid.UUID][]domain.EntityTally
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{tallies: make(map[uuid.UUID][]domain.EntityTally)}
}

func (s *stubLedgerRepo) UpsertTally(ctx context.Context, loadID uuid.UUID, tally domain.EntityTally) error {
	for i, existing := range s.tallies[loadID] {
		if existing.EntityType == tally.EntityType {
			s.tallies[loadID][i] = tally
			return nil
		}
	}
	s.tallies[loadID] = append(s.tallies[loadID], tally)
	return nil
}

func (s *stubLedgerRepo) ListTallies(ctx context.Context, loadID uuid.UUID) ([]domain.EntityTally, error) {
	return s.tallies[loadID], nil
}

func (s *stubLedgerRepo) ClearTallies(ctx context.Context, loadID uuid.UUID) error {
	delete(s.tallies, loadID)
	return nil
}

type stubExceptionRepo struct {
	records []domain.ExceptionRecord
}

func (s *stubExceptionRepo) Record(ctx context.Context, rec domain.ExceptionRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *stubExceptionRepo) ListByLoad(ctx context.Context, loadID uuid.UUID) ([]domain.ExceptionRecord, error) {
	return s.records, nil
}

func testLoad() domain.Load {
	load := domain.NewLoad(domain.LoadKey{PartnerID: "p1", ShopID: "s1", LoadID: "load-1"})
	started := time.Now().UTC()
	load.StartedAt = &started
	return load
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		tallies []domain.EntityTally
		want    domain.LoadStatus
	}{
		{
			"all clean",
			[]domain.EntityTally{
				{EntityType: domain.EntityCustomer, Inserted: 2, Status: domain.EntityStatusCompleted},
				{EntityType: domain.EntitySupplier, Status: domain.EntityStatusSkipped},
			},
			domain.LoadStatusCompleted,
		},
		{
			"exceptions present",
			[]domain.EntityTally{
				{EntityType: domain.EntityCustomer, Inserted: 1, Excepted: 1, Status: domain.EntityStatusCompleted},
			},
			domain.LoadStatusCompletedWithExceptions,
		},
		{
			"entity failure wins over exceptions",
			[]domain.EntityTally{
				{EntityType: domain.EntityCustomer, Excepted: 3, Status: domain.EntityStatusCompleted},
				{EntityType: domain.EntityVehicle, Status: domain.EntityStatusFailed, Error: "staging unavailable"},
			},
			domain.LoadStatusFailed,
		},
		{
			"no tallies",
			nil,
			domain.LoadStatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overallStatus(tt.tallies); got != tt.want {
				t.Fatalf("overallStatus = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFinalizeWritesLedgerFile(t *testing.T) {
	dir := t.TempDir()
	ledgers := newStubLedgerRepo()
	reporter := NewReporter(ledgers, &stubExceptionRepo{}, dir)

	load := testLoad()
	tally := domain.EntityTally{
		EntityType: domain.EntityCustomer,
		Declared:   2,
		Staged:     2,
		Inserted:   2,
		Status:     domain.EntityStatusCompleted,
	}
	if err := reporter.RecordTally(context.Background(), load, tally); err != nil {
		t.Fatalf("failed to record tally: %v", err)
	}

	record, err := reporter.Finalize(context.Background(), load)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if record.Status != domain.LoadStatusCompleted {
		t.Fatalf("unexpected status %s", record.Status)
	}

	payload, err := os.ReadFile(filepath.Join(dir, "p1_s1_load-1_ledger.json"))
	if err != nil {
		t.Fatalf("ledger file not written: %v", err)
	}
	var written domain.LedgerRecord
	if err := json.Unmarshal(payload, &written); err != nil {
		t.Fatalf("ledger file is not valid json: %v", err)
	}
	got, ok := written.Tally(domain.EntityCustomer)
	if !ok || got.Inserted != 2 {
		t.Fatalf("ledger file missing customer tally: %+v", written)
	}
}

func TestFinalizeWritesExceptionReports(t *testing.T) {
	dir := t.TempDir()
	ledgers := newStubLedgerRepo()
	exceptions := &stubExceptionRepo{}
	reporter := NewReporter(ledgers, exceptions, dir)

	load := testLoad()
	if err := reporter.RecordTally(context.Background(), load, domain.EntityTally{
		EntityType: domain.EntityCustomer,
		Declared:   2,
		Staged:     2,
		Inserted:   1,
		Excepted:   1,
		Status:     domain.EntityStatusCompleted,
	}); err != nil {
		t.Fatalf("failed to record tally: %v", err)
	}
	_ = exceptions.Record(context.Background(), domain.ExceptionRecord{
		ID:         uuid.New(),
		LoadID:     load.ID,
		EntityType: domain.EntityCustomer,
		LineNumber: 3,
		ExternalID: "cust-2",
		Reason:     domain.ReasonValidationFailed,
		Detail:     "missing external id",
		RawValues:  map[string]string{"firstName": "John"},
	})

	record, err := reporter.Finalize(context.Background(), load)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if record.Status != domain.LoadStatusCompletedWithExceptions {
		t.Fatalf("unexpected status %s", record.Status)
	}

	payload, err := os.ReadFile(filepath.Join(dir, "p1_s1_load-1_customers_exceptions.csv"))
	if err != nil {
		t.Fatalf("exception report not written: %v", err)
	}
	content := string(payload)
	if !strings.Contains(content, "line_number,external_id,reason,detail,raw_values") {
		t.Fatalf("missing header: %s", content)
	}
	if !strings.Contains(content, "cust-2") || !strings.Contains(content, "validation_failed") {
		t.Fatalf("missing exception row: %s", content)
	}
}

func TestFinalizeSurvivesUnwritableReportDir(t *testing.T) {
	ledgers := newStubLedgerRepo()
	reporter := NewReporter(ledgers, &stubExceptionRepo{}, string([]byte{0}))

	load := testLoad()
	if err := reporter.RecordTally(context.Background(), load, domain.EntityTally{
		EntityType: domain.EntityCustomer,
		Status:     domain.EntityStatusCompleted,
	}); err != nil {
		t.Fatalf("failed to record tally: %v", err)
	}

	// The queryable record is authoritative; file problems are logged only.
	record, err := reporter.Finalize(context.Background(), load)
	if err != nil {
		t.Fatalf("finalize must not fail on report io: %v", err)
	}
	if record.Status != domain.LoadStatusCompleted {
		t.Fatalf("unexpected status %s", record.Status)
	}
}

func TestResetClearsTallies(t *testing.T) {
	ledgers := newStubLedgerRepo()
	reporter := NewReporter(ledgers, &stubExceptionRepo{}, "")

	load := testLoad()
	_ = reporter.RecordTally(context.Background(), load, domain.EntityTally{
		EntityType: domain.EntityCustomer,
		Excepted:   5,
		Status:     domain.EntityStatusCompleted,
	})
	if err := reporter.Reset(context.Background(), load); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	tallies, err := reporter.Tallies(context.Background(), load)
	if err != nil {
		t.Fatalf("tallies failed: %v", err)
	}
	if len(tallies) != 0 {
		t.Fatalf("expected no tallies after reset, got %d", len(tallies))
	}
}
