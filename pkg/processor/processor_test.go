package processor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/grouping"
	"github.com/Ramsey-B/fern/pkg/history"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/reconcile"
)

type fakeEntityStore struct {
	entities []models.Entity
	applied  []models.EntityUpdate
	getErr   error
	applyErr error
}

func (f *fakeEntityStore) GetAll(_ context.Context) ([]models.Entity, error) {
	return f.entities, f.getErr
}

func (f *fakeEntityStore) ApplyUpdates(_ context.Context, updates []models.EntityUpdate) (int, error) {
	if f.applyErr != nil {
		return 0, f.applyErr
	}
	f.applied = append(f.applied, updates...)
	return len(updates), nil
}

type fakeRecordStore struct {
	records   []models.RawInspectionRecord
	staged    []models.RawInspectionRecord
	upsertErr error
}

func (f *fakeRecordStore) UpsertBatch(_ context.Context, records []models.RawInspectionRecord) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.staged = append(f.staged, records...)
	return len(records), nil
}

func (f *fakeRecordStore) ListAll(_ context.Context) ([]models.RawInspectionRecord, error) {
	return f.records, nil
}

type fakeReportStore struct {
	reports []models.MatchReport
}

func (f *fakeReportStore) Create(_ context.Context, report models.MatchReport) error {
	f.reports = append(f.reports, report)
	return nil
}

type fakeEmitter struct {
	updatedRuns   []string
	completedRuns []string
	err           error
}

func (f *fakeEmitter) EmitHealthRecordsUpdated(_ context.Context, runID string, _ []models.EntityUpdate) error {
	if f.err != nil {
		return f.err
	}
	f.updatedRuns = append(f.updatedRuns, runID)
	return nil
}

func (f *fakeEmitter) EmitReconciliationCompleted(_ context.Context, report models.MatchReport) error {
	if f.err != nil {
		return f.err
	}
	f.completedRuns = append(f.completedRuns, report.RunID)
	return nil
}

type fakeProvenance struct {
	recorded []models.Match
}

func (f *fakeProvenance) RecordMatch(_ context.Context, _ string, match models.Match) error {
	f.recorded = append(f.recorded, match)
	return nil
}

func newTestProcessor(entities *fakeEntityStore, records *fakeRecordStore, reports *fakeReportStore, emitter EventEmitter, provenance ProvenanceRecorder) *Processor {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	builder := history.NewBuilder(history.DefaultConfig())
	engine := matching.NewEngine(logger, builder, nil, matching.DefaultConfig())
	reconciler := reconcile.NewReconciler(logger, reconcile.DefaultConfig())
	return NewProcessor(logger, entities, records, reports, grouping.New(), engine, reconciler, emitter, provenance)
}

func inspectionRecord(id, name, address string) models.RawInspectionRecord {
	return models.RawInspectionRecord{
		SourceSystemID:    id,
		Provider:          "cdph",
		RestaurantName:    name,
		RestaurantAddress: address,
		InspectionDate:    time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProcessMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("stages the batch", func(t *testing.T) {
		records := &fakeRecordStore{}
		p := newTestProcessor(&fakeEntityStore{}, records, &fakeReportStore{}, nil, nil)

		msg := &kafka.IncomingMessage{
			Topic: "inspection-records",
			InspectionMessage: &kafka.InspectionMessage{
				Provider: "cdph",
				Records: []models.RawInspectionRecord{
					inspectionRecord("cdph-1", "Jade Garden", "123 Main St"),
					inspectionRecord("cdph-2", "Golden Dragon", "42 Elm Ave"),
				},
			},
		}

		require.NoError(t, p.ProcessMessage(ctx, msg))
		assert.Len(t, records.staged, 2)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		records := &fakeRecordStore{}
		p := newTestProcessor(&fakeEntityStore{}, records, &fakeReportStore{}, nil, nil)

		msg := &kafka.IncomingMessage{InspectionMessage: &kafka.InspectionMessage{Provider: "cdph"}}
		require.NoError(t, p.ProcessMessage(ctx, msg))
		assert.Empty(t, records.staged)
	})

	t.Run("staging failure propagates for retry", func(t *testing.T) {
		records := &fakeRecordStore{upsertErr: fmt.Errorf("connection refused")}
		p := newTestProcessor(&fakeEntityStore{}, records, &fakeReportStore{}, nil, nil)

		msg := &kafka.IncomingMessage{
			InspectionMessage: &kafka.InspectionMessage{
				Provider: "cdph",
				Records:  []models.RawInspectionRecord{inspectionRecord("cdph-1", "Jade Garden", "123 Main St")},
			},
		}
		assert.Error(t, p.ProcessMessage(ctx, msg))
	})
}

func TestRunReconciliation(t *testing.T) {
	ctx := context.Background()

	t.Run("full pass applies updates and persists the report", func(t *testing.T) {
		entities := &fakeEntityStore{entities: []models.Entity{
			{ID: "ent-1", Name: "Jade Garden", Address: "123 Main St", Region: "il"},
		}}
		records := &fakeRecordStore{records: []models.RawInspectionRecord{
			inspectionRecord("cdph-1", "Jade Garden", "123 Main Street"),
		}}
		reports := &fakeReportStore{}
		emitter := &fakeEmitter{}
		provenance := &fakeProvenance{}
		p := newTestProcessor(entities, records, reports, emitter, provenance)

		report, err := p.RunReconciliation(ctx)
		require.NoError(t, err)
		require.NotNil(t, report)

		assert.NotEmpty(t, report.RunID)
		assert.Equal(t, 1, report.MatchCount)
		assert.Equal(t, 1, report.UpdatedCount)

		require.Len(t, entities.applied, 1)
		assert.Equal(t, "ent-1", entities.applied[0].EntityID)
		require.NotNil(t, entities.applied[0].HealthRecord)
		assert.Equal(t, "cdph", entities.applied[0].HealthRecord.DataSource)

		require.Len(t, reports.reports, 1)
		assert.Equal(t, report.RunID, reports.reports[0].RunID)

		assert.Equal(t, []string{report.RunID}, emitter.updatedRuns)
		assert.Equal(t, []string{report.RunID}, emitter.completedRuns)

		require.Len(t, provenance.recorded, 1)
		assert.Equal(t, "ent-1", provenance.recorded[0].EntityID)
	})

	t.Run("nil emitter and provenance are tolerated", func(t *testing.T) {
		entities := &fakeEntityStore{entities: []models.Entity{
			{ID: "ent-1", Name: "Jade Garden", Address: "123 Main St"},
		}}
		records := &fakeRecordStore{records: []models.RawInspectionRecord{
			inspectionRecord("cdph-1", "Jade Garden", "123 Main St"),
		}}
		p := newTestProcessor(entities, records, &fakeReportStore{}, nil, nil)

		report, err := p.RunReconciliation(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.UpdatedCount)
	})

	t.Run("emit failure does not fail the run", func(t *testing.T) {
		entities := &fakeEntityStore{entities: []models.Entity{
			{ID: "ent-1", Name: "Jade Garden", Address: "123 Main St"},
		}}
		records := &fakeRecordStore{records: []models.RawInspectionRecord{
			inspectionRecord("cdph-1", "Jade Garden", "123 Main St"),
		}}
		emitter := &fakeEmitter{err: fmt.Errorf("broker unavailable")}
		p := newTestProcessor(entities, records, &fakeReportStore{}, emitter, nil)

		report, err := p.RunReconciliation(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.UpdatedCount)
	})

	t.Run("entity load failure aborts", func(t *testing.T) {
		entities := &fakeEntityStore{getErr: fmt.Errorf("connection refused")}
		p := newTestProcessor(entities, &fakeRecordStore{}, &fakeReportStore{}, nil, nil)

		_, err := p.RunReconciliation(ctx)
		assert.Error(t, err)
	})

	t.Run("no staged records yields an empty run", func(t *testing.T) {
		entities := &fakeEntityStore{entities: []models.Entity{{ID: "ent-1", Name: "Jade Garden"}}}
		reports := &fakeReportStore{}
		p := newTestProcessor(entities, &fakeRecordStore{}, reports, nil, nil)

		report, err := p.RunReconciliation(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.MatchCount)
		assert.Equal(t, 0, report.UpdatedCount)
		assert.Empty(t, entities.applied)
		assert.Len(t, reports.reports, 1)
	})
}
