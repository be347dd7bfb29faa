// Package matching implements entity matching for health-inspection records:
// every restaurant group is scored against every directory entity and the
// best candidates are kept under a configurable policy.
package matching

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/history"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Policy is a filter layered above raw scoring. Implementations reject
// matches the score alone cannot rule out, e.g. a citywide dataset matching
// an entity in another region.
type Policy interface {
	Allow(match models.Match, group models.RestaurantGroup, entity models.Entity) bool
}

// EngineConfig contains configuration for the match engine
type EngineConfig struct {
	MinScore           float64 // Minimum score to consider a match (default: 0.5)
	MaxMatchesPerGroup int     // Maximum candidate entities kept per group (default: 1)
	WorkerCount        int     // Parallel scoring workers, sharded by group (default: 4)
}

// DefaultConfig returns default engine configuration
func DefaultConfig() EngineConfig {
	return EngineConfig{
		MinScore:           0.5,
		MaxMatchesPerGroup: 1,
		WorkerCount:        4,
	}
}

// Engine scores restaurant groups against the entity directory and selects
// winners. Scoring is read-only over the entity collection; callers must not
// mutate entities during a Match call.
type Engine struct {
	logger  ectologger.Logger
	scorer  *Scorer
	builder *history.Builder
	policy  Policy
	config  EngineConfig
}

// NewEngine creates a new match engine
func NewEngine(logger ectologger.Logger, builder *history.Builder, policy Policy, config EngineConfig) *Engine {
	if config.MaxMatchesPerGroup <= 0 {
		config.MaxMatchesPerGroup = 1
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	return &Engine{
		logger:  logger,
		scorer:  NewScorer(),
		builder: builder,
		policy:  policy,
		config:  config,
	}
}

// Match scores every group against every entity and returns the accepted
// candidates, ranked per group by descending score with stable ties on entity
// input order. Output is deterministic for a fixed input: matches appear in
// group input order.
func (e *Engine) Match(ctx context.Context, entities []models.Entity, groups []models.RestaurantGroup) ([]models.Match, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Match")
	defer span.End()

	if e.config.MinScore < 0 || e.config.MinScore > 1 {
		return nil, fmt.Errorf("min score %f is outside [0, 1]", e.config.MinScore)
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_count": len(entities),
		"group_count":  len(groups),
	})

	// Scores below the low-confidence floor are never candidates, whatever
	// the configured minimum.
	minScore := e.config.MinScore
	if minScore < models.LowConfidenceThreshold {
		minScore = models.LowConfidenceThreshold
	}

	// Each group's scoring is independent and read-only over the shared
	// entity slice, so groups are sharded across workers. Results land in a
	// per-group slot to keep output order deterministic.
	perGroup := make([][]models.Match, len(groups))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < e.config.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				perGroup[i] = e.matchGroup(ctx, entities, &groups[i], minScore)
			}
		}()
	}

	for i := range groups {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	matches := make([]models.Match, 0, len(groups))
	for _, groupMatches := range perGroup {
		matches = append(matches, groupMatches...)
	}

	log.WithFields(map[string]any{"match_count": len(matches)}).Debug("Matched groups against entities")

	return matches, nil
}

// matchGroup scores one group against every entity and keeps the top
// candidates under the policy.
func (e *Engine) matchGroup(ctx context.Context, entities []models.Entity, group *models.RestaurantGroup, minScore float64) []models.Match {
	record := e.builder.Build(group)
	if record == nil {
		// Should not occur under the grouper's contract; never crash the batch.
		e.logger.WithContext(ctx).WithFields(map[string]any{"group_key": group.Key}).Warn("Group produced no health record, skipping")
		return nil
	}

	candidates := make([]models.Match, 0)
	for i := range entities {
		entity := &entities[i]

		result := e.scorer.Score(entity, group.Restaurant)
		if !result.Candidate || result.Score < minScore {
			continue
		}

		match := models.Match{
			EntityID:       entity.ID,
			GroupKey:       group.Key,
			RestaurantName: group.Restaurant.Name,
			Score:          result.Score,
			Confidence:     result.Confidence,
			Details:        result.Details,
			HealthRecord:   record,
		}

		if e.policy != nil && !e.policy.Allow(match, *group, *entity) {
			continue
		}

		candidates = append(candidates, match)
	}

	// Stable sort keeps exact ties in entity input order for reproducibility.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > e.config.MaxMatchesPerGroup {
		candidates = candidates[:e.config.MaxMatchesPerGroup]
	}

	return candidates
}
