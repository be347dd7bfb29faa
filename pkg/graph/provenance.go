package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ProvenanceService records which source restaurant each entity's health
// record came from, so a match decision can be audited after the fact.
type ProvenanceService struct {
	client *Client
	logger ectologger.Logger
}

// NewProvenanceService creates a new provenance service
func NewProvenanceService(client *Client, logger ectologger.Logger) *ProvenanceService {
	return &ProvenanceService{
		client: client,
		logger: logger,
	}
}

// RecordMatch upserts the entity and source-restaurant nodes and the
// MATCHED_TO edge between them for one accepted match.
func (s *ProvenanceService) RecordMatch(ctx context.Context, runID string, match models.Match) error {
	ctx, span := tracing.StartSpan(ctx, "graph.ProvenanceService.RecordMatch")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id": match.EntityID,
		"group_key": match.GroupKey,
		"run_id":    runID,
	})

	provider := ""
	if match.HealthRecord != nil {
		provider = match.HealthRecord.DataSource
	}

	cypher := `
		MERGE (b:Buffet {id: $entity_id})
		MERGE (r:SourceRestaurant {key: $group_key, provider: $provider})
		SET r.name = $restaurant_name
		MERGE (b)-[m:MATCHED_TO]->(r)
		SET m.score = $score,
		    m.confidence = $confidence,
		    m.run_id = $run_id
		RETURN m
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"entity_id":       match.EntityID,
			"group_key":       match.GroupKey,
			"provider":        provider,
			"restaurant_name": match.RestaurantName,
			"score":           match.Score,
			"confidence":      string(match.Confidence),
			"run_id":          runID,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		log.WithError(err).Error("Failed to record match provenance")
		return fmt.Errorf("failed to record match provenance: %w", err)
	}

	log.Debug("Recorded match provenance")
	return nil
}

// GetMatchHistory returns the provenance edges for one entity. Order is not
// guaranteed; callers sort if they care.
func (s *ProvenanceService) GetMatchHistory(ctx context.Context, entityID string) ([]map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.ProvenanceService.GetMatchHistory")
	defer span.End()

	cypher := `
		MATCH (b:Buffet {id: $entity_id})-[m:MATCHED_TO]->(r:SourceRestaurant)
		RETURN r.key AS group_key, r.provider AS provider, r.name AS restaurant_name,
		       m.score AS score, m.confidence AS confidence, m.run_id AS run_id
	`

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"entity_id": entityID})
		if err != nil {
			return nil, err
		}

		var rows []map[string]any
		for res.Next(ctx) {
			record := res.Record()
			row := make(map[string]any, len(record.Keys))
			for _, key := range record.Keys {
				value, _ := record.Get(key)
				row[key] = value
			}
			rows = append(rows, row)
		}
		return rows, res.Err()
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entityID}).Error("Failed to get match history")
		return nil, fmt.Errorf("failed to get match history: %w", err)
	}

	rows, _ := result.([]map[string]any)
	return rows, nil
}
