package results

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bigbrainhq/bigbrain/internal/domain"
)

// Aggregate reduces an ended session's ledger to a leaderboard and
// per-question statistics. It is a pure projection: aggregating the same
// snapshot twice yields identical output.
func Aggregate(snap domain.SessionSnapshot) domain.SessionResults {
	return domain.SessionResults{
		SessionID:   snap.SessionID,
		Leaderboard: leaderboard(snap),
		Questions:   questionStats(snap),
	}
}

// leaderboard ranks players by correct answers (descending), then total
// time used (ascending). The sort is stable, so exact ties keep join order.
func leaderboard(snap domain.SessionSnapshot) domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(snap.Players))
	for _, p := range snap.Players {
		e := domain.LeaderboardEntry{
			PlayerID: p.PlayerID,
			Name:     p.Name,
		}
		for _, r := range p.Answers {
			if r.Correct {
				e.CorrectCount++
			}
			e.TotalTime += r.TimeUsed()
			e.TotalPoints += r.Points
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CorrectCount != entries[j].CorrectCount {
			return entries[i].CorrectCount > entries[j].CorrectCount
		}
		return entries[i].TotalTime < entries[j].TotalTime
	})

	return domain.Leaderboard{
		SessionID: snap.SessionID,
		Entries:   entries,
	}
}

// questionStats computes, per question, the fraction of players who
// answered correctly and the average seconds to answer. Synthesized
// no-answer records count as incorrect but still contribute their
// deadline-elapsed time.
func questionStats(snap domain.SessionSnapshot) []domain.QuestionStat {
	stats := make([]domain.QuestionStat, 0, len(snap.Questions))
	for i, q := range snap.Questions {
		var (
			correct   int64
			totalTime float64
			answered  int64
		)
		for _, p := range snap.Players {
			if i >= len(p.Answers) {
				continue
			}
			r := p.Answers[i]
			if r.Correct {
				correct++
			}
			totalTime += r.TimeUsed()
			answered++
		}

		st := domain.QuestionStat{
			QuestionID: q.QuestionID,
			Title:      q.Title,
		}
		if n := int64(len(snap.Players)); n > 0 {
			st.CorrectRate = decimal.NewFromInt(correct).Div(decimal.NewFromInt(n))
		}
		if answered > 0 {
			st.AvgTime = decimal.NewFromFloat(totalTime).Div(decimal.NewFromInt(answered))
		}
		stats = append(stats, st)
	}
	return stats
}
