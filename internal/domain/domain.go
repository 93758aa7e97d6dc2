package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuestionType determines how a question is answered and scored.
type QuestionType string

const (
	QuestionTypeSingle   QuestionType = "single"
	QuestionTypeMultiple QuestionType = "multiple"
	QuestionTypeBoolean  QuestionType = "boolean"
)

// Game is an ordered set of questions. The engine treats it as read-only
// input fetched once when a session starts.
type Game struct {
	GameID    string
	Name      string
	Questions []Question
}

type Question struct {
	QuestionID  string
	Title       string
	Description string
	Type        QuestionType
	Options     []Option
	// TimeLimit is the answering window in seconds.
	TimeLimit int
}

type Option struct {
	Text    string
	Correct bool
}

// CorrectValues returns the option texts flagged correct. For boolean
// questions the catalog stores two options with texts "true" and "false".
func (q Question) CorrectValues() []string {
	var vals []string
	for _, o := range q.Options {
		if o.Correct {
			vals = append(vals, o.Text)
		}
	}
	return vals
}

// SessionStatus is the lifecycle state of a running session. There is no
// waiting state: a session is created active at question 0, and a game with
// no session simply has no registry entry.
type SessionStatus string

const (
	SessionActive SessionStatus = "ACTIVE"
	SessionEnded  SessionStatus = "ENDED"
)

// AnswerRecord is one player's outcome for one question. A question that
// was never answered still gets a record when the session moves on, with
// AnsweredAt set to the question deadline and zero points.
type AnswerRecord struct {
	QuestionID        string    `json:"questionId"`
	Answers           []string  `json:"answers"`
	QuestionStartedAt time.Time `json:"questionStartedAt"`
	AnsweredAt        time.Time `json:"answeredAt"`
	Correct           bool      `json:"correct"`
	Points            int       `json:"points"`
}

// TimeUsed is the seconds between the question starting for this player and
// the answer being recorded.
func (r AnswerRecord) TimeUsed() float64 {
	return r.AnsweredAt.Sub(r.QuestionStartedAt).Seconds()
}

// PlayerLedger is the read-only per-player slice of a finished session,
// consumed by result aggregation.
type PlayerLedger struct {
	PlayerID string
	Name     string
	JoinedAt time.Time
	Answers  []AnswerRecord
}

// SessionSnapshot is the frozen view of an ended session.
type SessionSnapshot struct {
	SessionID string
	GameID    string
	Questions []Question
	Players   []PlayerLedger
	EndedAt   time.Time
}

// Leaderboard ranks players by correct answers, then by total time used.
// Entries with identical keys keep join order.
type Leaderboard struct {
	SessionID string
	Entries   []LeaderboardEntry
}

type LeaderboardEntry struct {
	PlayerID     string
	Name         string
	CorrectCount int
	TotalTime    float64
	TotalPoints  int
}

// QuestionStat summarizes one question across all players of a session.
type QuestionStat struct {
	QuestionID  string
	Title       string
	CorrectRate decimal.Decimal
	AvgTime     decimal.Decimal
}

// SessionResults is the full post-session projection.
type SessionResults struct {
	SessionID   string
	Leaderboard Leaderboard
	Questions   []QuestionStat
}
