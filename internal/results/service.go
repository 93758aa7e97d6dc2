package results

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bigbrainhq/bigbrain/internal/domain"
	"github.com/bigbrainhq/bigbrain/internal/errors"
	"github.com/bigbrainhq/bigbrain/internal/event"
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Service mirrors finished sessions into a redis leaderboard and republishes
// the aggregated standings on the event bus for push-style consumers.
type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameSessionEnded, func(ctx context.Context, e event.Event) error {
		return s.HandleSessionEnded(ctx, e.(domain.EventSessionEnded))
	})

	return s
}

// HandleSessionEnded aggregates the ended session, writes each player's
// total points into the session's redis sorted set, and publishes the full
// leaderboard.
func (s *Service) HandleSessionEnded(ctx context.Context, e domain.EventSessionEnded) error {
	agg := Aggregate(e.Snapshot)

	members := make([]redis.Z, 0, len(agg.Leaderboard.Entries))
	for _, entry := range agg.Leaderboard.Entries {
		members = append(members, redis.Z{
			Score:  float64(entry.TotalPoints),
			Member: entry.Name,
		})
	}
	if len(members) > 0 {
		if err := s.redis.ZAdd(ctx, s.leaderboardKey(agg.SessionID), members...).Err(); err != nil {
			return fmt.Errorf("results: mirror leaderboard: %w", err)
		}
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{Leaderboard: agg.Leaderboard})
	return nil
}

type TopScore struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// TopScores reads the mirrored standings back, highest total points first.
func (s *Service) TopScores(ctx context.Context, sessionID string) ([]TopScore, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("results: read leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("leaderboard not found: session=%s", sessionID))
	}

	scores := make([]TopScore, 0, len(res))
	for _, z := range res {
		scores = append(scores, TopScore{
			Name:   z.Member.(string),
			Points: z.Score,
		})
	}
	return scores, nil
}

func (s *Service) leaderboardKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, sessionID)
}
