package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/garagehub/shopload/internal/domain"
	"github.com/garagehub/shopload/internal/ledger"
	"github.com/garagehub/shopload/internal/manifest"
	"github.com/garagehub/shopload/internal/repository"
	"github.com/garagehub/shopload/internal/staging"
	"github.com/garagehub/shopload/internal/storage"
	"github.com/garagehub/shopload/internal/upsert"
)

// Service runs the full pipeline for one load: manifest validation, staging,
// dependency-ordered upsert, and ledger finalization. It is the rerun
// coordinator: invoking it again with the same partner/shop/load triple
// re-drives the same Load record through the pipeline, and the crosswalk
// guarantees rows applied before are updated in place rather than duplicated.
type Service struct {
	loads       repository.LoadRepository
	stagingRepo repository.StagingRepository
	validator   *manifest.Validator
	stager      *staging.Loader
	engine      *upsert.Engine
	reporter    *ledger.Reporter
}

// NewService wires the pipeline components.
func NewService(
	loads repository.LoadRepository,
	stagingRepo repository.StagingRepository,
	validator *manifest.Validator,
	stager *staging.Loader,
	engine *upsert.Engine,
	reporter *ledger.Reporter,
) *Service {
	return &Service{
		loads:       loads,
		stagingRepo: stagingRepo,
		validator:   validator,
		stager:      stager,
		engine:      engine,
		reporter:    reporter,
	}
}

// RunRequest triggers a load. Files points at the storage location the
// partner delivered the manifest and seven files to.
type RunRequest struct {
	Key          domain.LoadKey
	Files        storage.FileSet
	ForceRestage bool
}

// RunResult is the terminal outcome of one pipeline run.
type RunResult struct {
	Load   domain.Load
	Ledger domain.LedgerRecord
}

// Run executes the pipeline. A failed run still returns a RunResult carrying
// the failed ledger record; the error explains what stopped the load.
func (s *Service) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	load, err := s.coordinate(ctx, req.Key)
	if err != nil {
		return RunResult{}, err
	}

	m, err := storage.ReadManifest(req.Files)
	if err != nil {
		return s.failBeforeStaging(ctx, load, err)
	}

	plans, err := s.validator.Validate(m, req.Files)
	if err != nil {
		return s.failBeforeStaging(ctx, load, err)
	}

	if err := s.reporter.Reset(ctx, load); err != nil {
		return RunResult{}, fmt.Errorf("failed to reset tallies: %w", err)
	}

	if err := s.loads.UpdateStatus(ctx, load.ID, domain.LoadStatusStaging); err != nil {
		return RunResult{}, err
	}
	now := time.Now().UTC()
	load.Status = domain.LoadStatusStaging
	if load.StartedAt == nil {
		load.StartedAt = &now
	}

	stageResults, stagingFailed := s.stageAll(ctx, load, plans, req.Files, req.ForceRestage)

	if err := s.loads.UpdateStatus(ctx, load.ID, domain.LoadStatusUpserting); err != nil {
		return RunResult{}, err
	}

	plan, declared := buildPlan(plans, stageResults, stagingFailed)
	outcomes := s.engine.Run(ctx, load, plan)

	for t, out := range outcomes {
		tally := domain.EntityTally{
			EntityType: t,
			Declared:   declared[t],
			Staged:     out.Staged,
			Inserted:   out.Inserted,
			Updated:    out.Updated,
			Excepted:   out.Excepted,
			Status:     domain.EntityStatusCompleted,
		}
		if out.Err != nil {
			tally.Status = domain.EntityStatusFailed
			tally.Error = out.Err.Error()
		}
		if err := s.reporter.RecordTally(ctx, load, tally); err != nil {
			return RunResult{}, err
		}
	}

	record, err := s.reporter.Finalize(ctx, load)
	if err != nil {
		return RunResult{}, err
	}

	if err := s.loads.Finish(ctx, load.ID, record.Status); err != nil {
		return RunResult{}, err
	}
	load.Status = record.Status

	log.Printf("[LOADER] load %s/%s/%s finished: %s (%d excepted)",
		load.Key.PartnerID, load.Key.ShopID, load.Key.LoadID, record.Status, record.TotalExcepted())
	return RunResult{Load: load, Ledger: record}, nil
}

// coordinate resolves the Load record for a key: first runs create it,
// reruns reuse it. A rerun of a completed load is accepted; the crosswalk
// makes it an effective verification pass.
func (s *Service) coordinate(ctx context.Context, key domain.LoadKey) (domain.Load, error) {
	load, err := s.loads.GetByKey(ctx, key)
	if err == nil {
		if load.Status == domain.LoadStatusCompleted {
			log.Printf("[LOADER] rerun of completed load %s, running verification pass", key.LoadID)
		} else if load.Status != domain.LoadStatusPending {
			log.Printf("[LOADER] rerun of load %s (previous status %s)", key.LoadID, load.Status)
		}
		return load, nil
	}
	if !errors.Is(err, domain.ErrLoadNotFound) {
		return domain.Load{}, err
	}
	return s.loads.Create(ctx, domain.NewLoad(key))
}

// failBeforeStaging terminates a load on a manifest-level error. No staging
// or upserting happened, so the ledger carries no tallies.
func (s *Service) failBeforeStaging(ctx context.Context, load domain.Load, cause error) (RunResult, error) {
	log.Printf("[LOADER] load %s failed before staging: %v", load.Key.LoadID, cause)
	if err := s.loads.Finish(ctx, load.ID, domain.LoadStatusFailed); err != nil {
		log.Printf("[LOADER] failed to mark load %s failed: %v", load.Key.LoadID, err)
	}
	load.Status = domain.LoadStatusFailed

	record := domain.LedgerRecord{
		LoadID: load.ID,
		Key:    load.Key,
		Status: domain.LoadStatusFailed,
	}
	return RunResult{Load: load, Ledger: record}, cause
}

// stageAll stages every planned file. Staging has no order dependency, so a
// failure in one entity type never stops its siblings; the failed type is
// tallied immediately and excluded from the upsert plan.
func (s *Service) stageAll(ctx context.Context, load domain.Load, plans []domain.FilePlan, files storage.FileSet, forceRestage bool) (map[domain.EntityType]staging.Result, map[domain.EntityType]bool) {
	results := make(map[domain.EntityType]staging.Result, len(plans))
	failed := make(map[domain.EntityType]bool)

	for _, plan := range plans {
		result, err := s.stager.Stage(ctx, load.ID, plan, files, forceRestage)
		if err != nil {
			failed[plan.EntityType] = true
			tally := domain.EntityTally{
				EntityType: plan.EntityType,
				Declared:   plan.DeclaredRows,
				Status:     domain.EntityStatusFailed,
				Error:      err.Error(),
			}
			if tallyErr := s.reporter.RecordTally(ctx, load, tally); tallyErr != nil {
				log.Printf("[LOADER] failed to record staging tally for %s: %v", plan.EntityType, tallyErr)
			}
			continue
		}

		results[plan.EntityType] = result
		if result.Skipped {
			tally := domain.EntityTally{
				EntityType: plan.EntityType,
				Status:     domain.EntityStatusSkipped,
			}
			if tallyErr := s.reporter.RecordTally(ctx, load, tally); tallyErr != nil {
				log.Printf("[LOADER] failed to record skip tally for %s: %v", plan.EntityType, tallyErr)
			}
		}
	}
	return results, failed
}

// buildPlan selects the entity types the engine applies. A staging failure
// cuts the dependency chain at that point, because downstream types cannot
// resolve parents; skipped types neither cut the chain nor get applied.
func buildPlan(plans []domain.FilePlan, results map[domain.EntityType]staging.Result, failed map[domain.EntityType]bool) (upsert.Plan, map[domain.EntityType]int) {
	declared := make(map[domain.EntityType]int, len(plans))
	for _, plan := range plans {
		declared[plan.EntityType] = plan.DeclaredRows
	}

	var plan upsert.Plan
	for _, t := range domain.DependencyChain() {
		if failed[t] {
			break
		}
		if result, ok := results[t]; ok && !result.Skipped {
			plan.Chain = append(plan.Chain, t)
		}
	}
	for _, t := range domain.IndependentSet() {
		if result, ok := results[t]; ok && !result.Skipped {
			plan.Independent = append(plan.Independent, t)
		}
	}
	return plan, declared
}

// Status returns a load's current state plus its recorded tallies.
func (s *Service) Status(ctx context.Context, key domain.LoadKey) (domain.Load, []domain.EntityTally, error) {
	load, err := s.loads.GetByKey(ctx, key)
	if err != nil {
		return domain.Load{}, nil, err
	}
	tallies, err := s.reporter.Tallies(ctx, load)
	if err != nil {
		return domain.Load{}, nil, err
	}
	return load, tallies, nil
}

// PurgeStaging deletes staged rows older than the retention window and
// returns how many were removed.
func (s *Service) PurgeStaging(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	purged, err := s.stagingRepo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Printf("[LOADER] purged %d staged rows older than %s", purged, cutoff.Format(time.RFC3339))
	return purged, nil
}
