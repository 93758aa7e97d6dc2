package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigbrainhq/bigbrain/internal/domain"
	"github.com/bigbrainhq/bigbrain/internal/errors"
	"github.com/bigbrainhq/bigbrain/internal/score"
)

// Session is the state machine for one run of a game. It is created active
// at question 0 and moves through the question list until ended; once ended
// it is frozen and read-only.
//
// All methods serialize on the session's own mutex, so many players may
// submit concurrently while the host advances, and different sessions never
// contend with each other.
type Session struct {
	mu sync.Mutex

	sessionID string
	gameID    string
	questions []domain.Question

	status   domain.SessionStatus
	index    int
	startAt  time.Time // current question start
	deadline time.Time
	endedAt  time.Time

	players []*player
	byName  map[string]*player
	byID    map[string]*player

	clock Clock
}

type player struct {
	id       string
	name     string
	joinedAt time.Time
	// answers holds at most one record per question index. Records for
	// skipped questions are synthesized when the session moves on, so a
	// finished ledger has no gaps.
	answers map[int]domain.AnswerRecord
}

func newSession(id string, game domain.Game, clock Clock) *Session {
	now := clock.Now()
	return &Session{
		sessionID: id,
		gameID:    game.GameID,
		questions: game.Questions,
		status:    domain.SessionActive,
		index:     0,
		startAt:   now,
		deadline:  deadlineFor(now, game.Questions[0].TimeLimit),
		byName:    make(map[string]*player),
		byID:      make(map[string]*player),
		clock:     clock,
	}
}

// questionStartFor is the moment the current question began for p. A player
// who joined mid-question-0 starts their clock at join time.
func (s *Session) questionStartFor(p *player) time.Time {
	if p.joinedAt.After(s.startAt) {
		return p.joinedAt
	}
	return s.startAt
}

// finalizeCurrentLocked synthesizes a no-answer record for every player who
// has not answered the current question, keeping ledgers in lock-step with
// the question clock.
func (s *Session) finalizeCurrentLocked() {
	q := s.questions[s.index]
	for _, p := range s.players {
		if _, ok := p.answers[s.index]; ok {
			continue
		}
		p.answers[s.index] = domain.AnswerRecord{
			QuestionID:        q.QuestionID,
			Answers:           nil,
			QuestionStartedAt: s.questionStartFor(p),
			AnsweredAt:        s.deadline,
			Correct:           false,
			Points:            0,
		}
	}
}

// Advance moves the session to the next question. Unanswered records for
// the question being left are synthesized first, so the index never runs
// ahead of the ledgers.
func (s *Session) Advance() (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.SessionActive {
		return QuestionView{}, errors.New(errors.CodeInvalidState,
			errors.WithMessagef("session %s is not active", s.sessionID))
	}
	if s.index >= len(s.questions)-1 {
		return QuestionView{}, errors.New(errors.CodeInvalidState,
			errors.WithMessagef("no next question: session %s is at the last question", s.sessionID))
	}

	s.finalizeCurrentLocked()

	now := s.clock.Now()
	s.index++
	s.startAt = now
	s.deadline = deadlineFor(now, s.questions[s.index].TimeLimit)

	return s.currentQuestionLocked(), nil
}

// End finalizes the current question and freezes the session. Ending twice
// fails: END is a one-shot transition.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.SessionActive {
		return errors.New(errors.CodeInvalidState,
			errors.WithMessagef("session %s is not active", s.sessionID))
	}

	s.finalizeCurrentLocked()
	s.status = domain.SessionEnded
	s.endedAt = s.clock.Now()
	return nil
}

// Join adds a named player. Joining is only open while the session is still
// effectively at the start: active, at question 0, before its deadline.
func (s *Session) Join(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.status != domain.SessionActive || s.index != 0 || now.After(s.deadline) {
		return "", errors.New(errors.CodeInvalidState,
			errors.WithMessagef("session %s is closed to new players", s.sessionID))
	}
	if _, ok := s.byName[name]; ok {
		return "", errors.New(errors.CodeConflict,
			errors.WithMessagef("player name %q is already taken", name))
	}

	p := &player{
		id:       uuid.NewString(),
		name:     name,
		joinedAt: now,
		answers:  make(map[int]domain.AnswerRecord),
	}
	s.players = append(s.players, p)
	s.byName[name] = p
	s.byID[p.id] = p
	return p.id, nil
}

// Submit records an answer for the player's current question, replacing any
// earlier submission: last answer before the deadline wins. position must
// name the question the caller believes is current.
func (s *Session) Submit(playerID string, position int, answers []string) (domain.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.SessionActive {
		return domain.AnswerRecord{}, errors.New(errors.CodeInvalidState,
			errors.WithMessagef("session %s is not active", s.sessionID))
	}

	p, ok := s.byID[playerID]
	if !ok {
		return domain.AnswerRecord{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("player %s not found", playerID))
	}

	if position != s.index {
		return domain.AnswerRecord{}, errors.New(errors.CodeTiming,
			errors.WithMessagef("question mismatch: submitted for position %d, current is %d", position, s.index))
	}

	now := s.clock.Now()
	if now.After(s.deadline) {
		return domain.AnswerRecord{}, errors.New(errors.CodeTiming,
			errors.WithMessagef("deadline passed for question %d", s.index))
	}

	q := s.questions[s.index]
	startedAt := s.questionStartFor(p)
	elapsed := now.Sub(startedAt).Seconds()
	correct, points := score.Score(q, answers, elapsed)

	rec := domain.AnswerRecord{
		QuestionID:        q.QuestionID,
		Answers:           answers,
		QuestionStartedAt: startedAt,
		AnsweredAt:        now,
		Correct:           correct,
		Points:            points,
	}
	p.answers[s.index] = rec
	return rec, nil
}

// Status is the host's view of the session.
type Status struct {
	Active      bool `json:"active"`
	Position    int  `json:"position"`
	PlayerCount int  `json:"players"`
	Questions   int  `json:"questions"`
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Active:      s.status == domain.SessionActive,
		Position:    s.index,
		PlayerCount: len(s.players),
		Questions:   len(s.questions),
	}
}

// PlayerStatus is the player's polled view of the lifecycle.
type PlayerStatus struct {
	Started bool `json:"started"`
	Ended   bool `json:"ended"`
}

func (s *Session) PlayerStatus() PlayerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return PlayerStatus{
		Started: s.status == domain.SessionActive,
		Ended:   s.status == domain.SessionEnded,
	}
}

// QuestionView is the current question with the answer key stripped.
type QuestionView struct {
	QuestionID  string   `json:"id"`
	Position    int      `json:"position"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type"`
	Options     []string `json:"options"`
	TimeLimit   int      `json:"time"`
}

func (s *Session) currentQuestionLocked() QuestionView {
	q := s.questions[s.index]
	opts := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, o.Text)
	}
	return QuestionView{
		QuestionID:  q.QuestionID,
		Position:    s.index,
		Title:       q.Title,
		Description: q.Description,
		Type:        string(q.Type),
		Options:     opts,
		TimeLimit:   q.TimeLimit,
	}
}

// CurrentQuestion returns the question players should be answering. It
// never exposes which options are correct.
func (s *Session) CurrentQuestion() (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.SessionActive {
		return QuestionView{}, errors.New(errors.CodeInvalidState,
			errors.WithMessagef("session %s is not active", s.sessionID))
	}
	return s.currentQuestionLocked(), nil
}

// RevealAnswer returns the current question's correct values, but only once
// the deadline has passed or the asking player has already submitted.
func (s *Session) RevealAnswer(playerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.SessionActive {
		return nil, errors.New(errors.CodeInvalidState,
			errors.WithMessagef("session %s is not active", s.sessionID))
	}

	p, ok := s.byID[playerID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("player %s not found", playerID))
	}

	_, answered := p.answers[s.index]
	if !answered && !s.clock.Now().After(s.deadline) {
		return nil, errors.New(errors.CodeInvalidState,
			errors.WithMessagef("answer for question %d is not yet available", s.index))
	}

	return s.questions[s.index].CorrectValues(), nil
}

// PlayerResults is one player's final score and answer history, available
// once the session has ended.
type PlayerResults struct {
	Name    string                `json:"name"`
	Score   int                   `json:"score"`
	Answers []domain.AnswerRecord `json:"answers"`
}

func (s *Session) ResultsFor(playerID string) (PlayerResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.SessionEnded {
		return PlayerResults{}, errors.New(errors.CodeInvalidState,
			errors.WithMessagef("session %s is still active", s.sessionID))
	}

	p, ok := s.byID[playerID]
	if !ok {
		return PlayerResults{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("player %s not found", playerID))
	}

	records := s.ledgerLocked(p)
	total := 0
	for _, r := range records {
		total += r.Points
	}

	return PlayerResults{
		Name:    p.name,
		Score:   total,
		Answers: records,
	}, nil
}

// ledgerLocked materializes the ordered record list for questions reached.
func (s *Session) ledgerLocked(p *player) []domain.AnswerRecord {
	records := make([]domain.AnswerRecord, 0, s.index+1)
	for i := 0; i <= s.index; i++ {
		records = append(records, p.answers[i])
	}
	return records
}

// Snapshot freezes the full ledger of an ended session for aggregation.
func (s *Session) Snapshot() (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.SessionEnded {
		return domain.SessionSnapshot{}, errors.New(errors.CodeInvalidState,
			errors.WithMessagef("session %s is still active", s.sessionID))
	}

	snap := domain.SessionSnapshot{
		SessionID: s.sessionID,
		GameID:    s.gameID,
		Questions: s.questions[:s.index+1],
		Players:   make([]domain.PlayerLedger, 0, len(s.players)),
		EndedAt:   s.endedAt,
	}
	for _, p := range s.players {
		snap.Players = append(snap.Players, domain.PlayerLedger{
			PlayerID: p.id,
			Name:     p.name,
			JoinedAt: p.joinedAt,
			Answers:  s.ledgerLocked(p),
		})
	}
	return snap, nil
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (game %s)", s.sessionID, s.gameID)
}
