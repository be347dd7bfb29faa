// Package events handles event emission for reconciliation outcomes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes reconciliation outcomes for downstream consumers (search
// indexing, cache invalidation, notifications).
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitHealthRecordsUpdated emits one event per applied update in a single
// batch write.
func (e *Emitter) EmitHealthRecordsUpdated(ctx context.Context, runID string, updates []models.EntityUpdate) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitHealthRecordsUpdated")
	defer span.End()

	if len(updates) == 0 {
		return nil
	}

	batch := make([]*kafka.Event, 0, len(updates))
	for _, update := range updates {
		data, err := json.Marshal(map[string]any{
			"schema_version": SchemaVersion,
			"entity_id":      update.EntityID,
			"confidence":     update.Confidence,
			"health_record":  update.HealthRecord,
		})
		if err != nil {
			return err
		}
		batch = append(batch, &kafka.Event{
			EventType: "health_record.updated",
			Key:       update.EntityID,
			RunID:     runID,
			Data:      data,
		})
	}

	if err := e.producer.PublishBatch(ctx, batch); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit health_record.updated events")
		return err
	}
	return nil
}

// EmitReconciliationCompleted emits the run summary event.
func (e *Emitter) EmitReconciliationCompleted(ctx context.Context, report models.MatchReport) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitReconciliationCompleted")
	defer span.End()

	data, err := json.Marshal(map[string]any{
		"schema_version":       SchemaVersion,
		"run_id":               report.RunID,
		"match_count":          report.MatchCount,
		"updated_count":        report.UpdatedCount,
		"counts_by_confidence": report.CountsByConfidence,
		"counts_by_region":     report.CountsByRegion,
	})
	if err != nil {
		return err
	}

	event := &kafka.Event{
		EventType: "reconciliation.completed",
		Key:       report.RunID,
		RunID:     report.RunID,
		Data:      data,
	}

	if err := e.producer.Publish(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit reconciliation.completed event")
		return err
	}
	return nil
}
