package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/bigbrainhq/bigbrain/internal/domain"
)

const maxConcurrentPublishes = 100

// Redis is the publish-side surface used for push notifications.
type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Leaderboard struct {
		SessionID string             `json:"session_id"`
		Entries   []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Name         string `json:"name"`
		CorrectCount int    `json:"correctCount"`
		TotalTime    string `json:"totalTime"`
		Points       int    `json:"points"`
	}

	playerRecord struct {
		Name    string                `json:"name"`
		Answers []domain.AnswerRecord `json:"answers"`
	}

	questionStat struct {
		QuestionID  string `json:"questionId"`
		Title       string `json:"title"`
		CorrectRate string `json:"correctRate"`
		AvgTime     string `json:"avgTime"`
	}
)

func leaderboardEntries(l domain.Leaderboard) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, LeaderboardEntry{
			Name:         e.Name,
			CorrectCount: e.CorrectCount,
			TotalTime:    strconv.FormatFloat(e.TotalTime, 'f', -1, 64),
			Points:       e.TotalPoints,
		})
	}
	return entries
}

func questionStats(stats []domain.QuestionStat) []questionStat {
	out := make([]questionStat, 0, len(stats))
	for _, s := range stats {
		out = append(out, questionStat{
			QuestionID:  s.QuestionID,
			Title:       s.Title,
			CorrectRate: s.CorrectRate.Round(4).String(),
			AvgTime:     s.AvgTime.Round(2).String(),
		})
	}
	return out
}

// PublishLeaderboardUpdated pushes the final standings to each player's
// notification channel so clients waiting on the results screen do not have
// to poll for them.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	data := Leaderboard{
		SessionID: l.SessionID,
		Entries:   leaderboardEntries(l),
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrentPublishes)

	for _, entry := range l.Entries {
		entry := entry
		eg.Go(func() error {
			return a.publishNotification(ctx, entry.PlayerID, domain.EventNameLeaderboardUpdated, data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, playerID, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:player:%s", a.prefix, playerID), b).Err()
}
