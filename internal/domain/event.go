package domain

const (
	EventNameSessionEnded       = "session.ended"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventSessionEnded carries the frozen snapshot of a finished session.
type EventSessionEnded struct {
	Snapshot SessionSnapshot
}

func (EventSessionEnded) Name() string { return EventNameSessionEnded }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
