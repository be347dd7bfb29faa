// Package processor handles ingestion of inspection record batches and
// orchestrates reconciliation runs over the staged data.
package processor

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	ctxmiddleware "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/grouping"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/reconcile"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// EntityStore is the directory-side persistence the processor reads entities
// from and writes accepted updates to.
type EntityStore interface {
	GetAll(ctx context.Context) ([]models.Entity, error)
	ApplyUpdates(ctx context.Context, updates []models.EntityUpdate) (int, error)
}

// RecordStore stages raw inspection records between ingestion and runs.
type RecordStore interface {
	UpsertBatch(ctx context.Context, records []models.RawInspectionRecord) (int, error)
	ListAll(ctx context.Context) ([]models.RawInspectionRecord, error)
}

// ReportStore persists run reports.
type ReportStore interface {
	Create(ctx context.Context, report models.MatchReport) error
}

// EventEmitter publishes reconciliation outcomes. Optional.
type EventEmitter interface {
	EmitHealthRecordsUpdated(ctx context.Context, runID string, updates []models.EntityUpdate) error
	EmitReconciliationCompleted(ctx context.Context, report models.MatchReport) error
}

// ProvenanceRecorder records accepted matches in the graph store. Optional.
type ProvenanceRecorder interface {
	RecordMatch(ctx context.Context, runID string, match models.Match) error
}

// Processor wires ingestion and reconciliation together.
type Processor struct {
	logger     ectologger.Logger
	entities   EntityStore
	records    RecordStore
	reports    ReportStore
	grouper    *grouping.Grouper
	engine     *matching.Engine
	reconciler *reconcile.Reconciler
	emitter    EventEmitter
	provenance ProvenanceRecorder
}

// NewProcessor creates a new processor. emitter and provenance may be nil;
// the run then skips event emission or provenance recording.
func NewProcessor(
	logger ectologger.Logger,
	entities EntityStore,
	records RecordStore,
	reports ReportStore,
	grouper *grouping.Grouper,
	engine *matching.Engine,
	reconciler *reconcile.Reconciler,
	emitter EventEmitter,
	provenance ProvenanceRecorder,
) *Processor {
	return &Processor{
		logger:     logger,
		entities:   entities,
		records:    records,
		reports:    reports,
		grouper:    grouper,
		engine:     engine,
		reconciler: reconciler,
		emitter:    emitter,
		provenance: provenance,
	}
}

// ProcessMessage stages an incoming provider batch. Returning an error keeps
// the message uncommitted so it is retried.
func (p *Processor) ProcessMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.ProcessMessage")
	defer span.End()

	ctx = ctxmiddleware.SetProvider(ctx, msg.GetProvider())
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"key":      msg.Key,
		"topic":    msg.Topic,
		"offset":   msg.Offset,
		"provider": msg.GetProvider(),
	})

	records := msg.GetRecords()
	if len(records) == 0 {
		log.Warn("Inspection message carries no records, skipping")
		return nil
	}

	staged, err := p.records.UpsertBatch(ctx, records)
	if err != nil {
		log.WithError(err).Error("Failed to stage inspection batch")
		return err
	}

	log.WithFields(map[string]any{
		"record_count": len(records),
		"staged":       staged,
	}).Info("Staged inspection batch")
	return nil
}

// RunReconciliation executes one full pass: group the staged records, match
// groups against the directory, apply the accepted updates in one batch, then
// persist the report and emit events.
func (p *Processor) RunReconciliation(ctx context.Context) (*models.MatchReport, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.RunReconciliation")
	defer span.End()

	runID := uuid.New().String()
	ctx = ctxmiddleware.SetRunID(ctx, runID)
	log := p.logger.WithContext(ctx).WithFields(map[string]any{"run_id": runID})

	entities, err := p.entities.GetAll(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load entities")
		return nil, err
	}

	records, err := p.records.ListAll(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load inspection records")
		return nil, err
	}

	groups := p.grouper.Group(records)
	log.WithFields(map[string]any{
		"entity_count": len(entities),
		"record_count": len(records),
		"group_count":  len(groups),
	}).Info("Starting reconciliation run")

	matches, err := p.engine.Match(ctx, entities, groups)
	if err != nil {
		log.WithError(err).Error("Matching failed")
		return nil, err
	}

	result, err := p.reconciler.Reconcile(ctx, entities, matches)
	if err != nil {
		log.WithError(err).Error("Reconciliation failed")
		return nil, err
	}

	applied, err := p.entities.ApplyUpdates(ctx, result.Updates)
	if err != nil {
		log.WithError(err).Error("Failed to apply updates")
		return nil, err
	}

	report := result.Report
	report.RunID = runID
	report.UpdatedCount = applied

	if err := p.reports.Create(ctx, report); err != nil {
		log.WithError(err).Error("Failed to persist match report")
		return nil, err
	}

	if p.emitter != nil {
		if err := p.emitter.EmitHealthRecordsUpdated(ctx, runID, result.Updates); err != nil {
			log.WithError(err).Warn("Failed to emit update events")
		}
		if err := p.emitter.EmitReconciliationCompleted(ctx, report); err != nil {
			log.WithError(err).Warn("Failed to emit run completed event")
		}
	}

	if p.provenance != nil {
		p.recordProvenance(ctx, runID, matches, result.Updates, log)
	}

	log.WithFields(map[string]any{
		"match_count":   report.MatchCount,
		"updated_count": report.UpdatedCount,
	}).Info("Reconciliation run complete")

	return &report, nil
}

// recordProvenance writes a graph edge for the winning match behind each
// applied update. Provenance failures never fail the run.
func (p *Processor) recordProvenance(ctx context.Context, runID string, matches []models.Match, updates []models.EntityUpdate, log ectologger.Logger) {
	best := make(map[string]models.Match, len(updates))
	for _, match := range matches {
		if current, ok := best[match.EntityID]; !ok || match.Score > current.Score {
			best[match.EntityID] = match
		}
	}

	for _, update := range updates {
		match, ok := best[update.EntityID]
		if !ok {
			continue
		}
		if err := p.provenance.RecordMatch(ctx, runID, match); err != nil {
			log.WithError(err).WithFields(map[string]any{"entity_id": match.EntityID}).Warn("Failed to record match provenance")
		}
	}
}
