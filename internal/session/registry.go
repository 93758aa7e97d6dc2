package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bigbrainhq/bigbrain/internal/domain"
	"github.com/bigbrainhq/bigbrain/internal/errors"
	"github.com/bigbrainhq/bigbrain/internal/event"
)

// GameSource supplies the ordered, immutable question list for a game. It
// is consulted once per Start.
type GameSource interface {
	GetGame(ctx context.Context, gameID string) (domain.Game, error)
}

type Config struct {
	Games    GameSource
	EventBus *event.Bus
	// Clock overrides the registry clock, for tests.
	Clock Clock
}

// Registry owns every live session, the game -> active-session mapping, and
// the player -> session index. It centrally enforces that a game has at most
// one active session, so sessions need not know about each other.
type Registry struct {
	games GameSource
	eb    *event.Bus
	clock Clock

	mu       sync.Mutex
	sessions map[string]*Session
	active   map[string]string // game id -> active session id
	players  map[string]string // player id -> session id
}

func NewRegistry(c Config) *Registry {
	return &Registry{
		games:    c.Games,
		eb:       c.EventBus,
		clock:    c.Clock,
		sessions: make(map[string]*Session),
		active:   make(map[string]string),
		players:  make(map[string]string),
	}
}

// Start creates a session for the game at question 0 and returns its id.
// It fails if the game already has an active session.
func (r *Registry) Start(ctx context.Context, gameID string) (string, error) {
	game, err := r.games.GetGame(ctx, gameID)
	if err != nil {
		return "", fmt.Errorf("session: load game %s: %w", gameID, err)
	}
	if len(game.Questions) == 0 {
		return "", errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("game %s has no questions", gameID))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("session: generate session ID: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sid, ok := r.active[gameID]; ok {
		return "", errors.New(errors.CodeInvalidState,
			errors.WithMessagef("game %s already has an active session %s", gameID, sid))
	}

	s := newSession(id.String(), game, r.clock)
	r.sessions[s.sessionID] = s
	r.active[gameID] = s.sessionID

	slog.InfoContext(ctx, "session: started",
		"session", s.sessionID,
		"game", gameID,
		"questions", len(game.Questions),
	)
	return s.sessionID, nil
}

// Advance moves a session to its next question.
func (r *Registry) Advance(ctx context.Context, sessionID string) (QuestionView, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return QuestionView{}, err
	}

	q, err := s.Advance()
	if err != nil {
		return QuestionView{}, err
	}

	slog.InfoContext(ctx, "session: advanced",
		"session", sessionID,
		"position", q.Position,
	)
	return q, nil
}

// End finalizes a session. The game becomes eligible for a new Start, the
// frozen session stays registered for result retrieval, and a
// session.ended event is published for downstream consumers.
func (r *Registry) End(ctx context.Context, sessionID string) error {
	s, err := r.lookup(sessionID)
	if err != nil {
		return err
	}

	if err := s.End(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.active[s.gameID] == sessionID {
		delete(r.active, s.gameID)
	}
	r.mu.Unlock()

	slog.InfoContext(ctx, "session: ended", "session", sessionID, "game", s.gameID)

	if r.eb != nil {
		snap, err := s.Snapshot()
		if err != nil {
			return err
		}
		r.eb.Publish(ctx, domain.EventSessionEnded{Snapshot: snap})
	}
	return nil
}

// Join registers a named player with a session and returns the player id.
func (r *Registry) Join(ctx context.Context, sessionID, name string) (string, error) {
	if name == "" {
		return "", errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("player name must not be empty"))
	}

	s, err := r.lookup(sessionID)
	if err != nil {
		return "", err
	}

	playerID, err := s.Join(name)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.players[playerID] = sessionID
	r.mu.Unlock()

	slog.InfoContext(ctx, "session: player joined",
		"session", sessionID,
		"player", playerID,
		"name", name,
	)
	return playerID, nil
}

// SubmitAnswer records a player's answer for the question at position.
func (r *Registry) SubmitAnswer(ctx context.Context, playerID string, position int, answers []string) (domain.AnswerRecord, error) {
	s, err := r.lookupByPlayer(playerID)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	return s.Submit(playerID, position, answers)
}

// Status returns the host view of a session.
func (r *Registry) Status(_ context.Context, sessionID string) (Status, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return Status{}, err
	}
	return s.Status(), nil
}

// PlayerStatus returns the polled lifecycle view for a player.
func (r *Registry) PlayerStatus(_ context.Context, playerID string) (PlayerStatus, error) {
	s, err := r.lookupByPlayer(playerID)
	if err != nil {
		return PlayerStatus{}, err
	}
	return s.PlayerStatus(), nil
}

// PlayerQuestion returns the player's current question, answer key stripped.
func (r *Registry) PlayerQuestion(_ context.Context, playerID string) (QuestionView, error) {
	s, err := r.lookupByPlayer(playerID)
	if err != nil {
		return QuestionView{}, err
	}
	return s.CurrentQuestion()
}

// PlayerAnswer reveals the current question's correct values to a player.
func (r *Registry) PlayerAnswer(_ context.Context, playerID string) ([]string, error) {
	s, err := r.lookupByPlayer(playerID)
	if err != nil {
		return nil, err
	}
	return s.RevealAnswer(playerID)
}

// PlayerResults returns a player's score and answer history once ended.
func (r *Registry) PlayerResults(_ context.Context, playerID string) (PlayerResults, error) {
	s, err := r.lookupByPlayer(playerID)
	if err != nil {
		return PlayerResults{}, err
	}
	return s.ResultsFor(playerID)
}

// Snapshot returns the frozen ledger of an ended session.
func (r *Registry) Snapshot(_ context.Context, sessionID string) (domain.SessionSnapshot, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return s.Snapshot()
}

// ActiveSession returns the id of the game's active session, if any.
func (r *Registry) ActiveSession(_ context.Context, gameID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sid, ok := r.active[gameID]
	if !ok {
		return "", errors.New(errors.CodeNotFound,
			errors.WithMessagef("game %s has no active session", gameID))
	}
	return sid, nil
}

func (r *Registry) lookup(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("session %s not found", sessionID))
	}
	return s, nil
}

func (r *Registry) lookupByPlayer(playerID string) (*Session, error) {
	r.mu.Lock()
	sessionID, ok := r.players[playerID]
	r.mu.Unlock()

	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("player %s not found", playerID))
	}
	return r.lookup(sessionID)
}
