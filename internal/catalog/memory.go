package catalog

import (
	"context"
	"sync"

	"github.com/bigbrainhq/bigbrain/internal/domain"
	"github.com/bigbrainhq/bigbrain/internal/errors"
)

// Memory is an in-process game source for tests and standalone runs.
type Memory struct {
	mu    sync.RWMutex
	games map[string]domain.Game
}

func NewMemory(games ...domain.Game) *Memory {
	m := &Memory{games: make(map[string]domain.Game, len(games))}
	for _, g := range games {
		m.games[g.GameID] = g
	}
	return m
}

func (m *Memory) Put(g domain.Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.GameID] = g
}

func (m *Memory) GetGame(_ context.Context, gameID string) (domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.games[gameID]
	if !ok {
		return domain.Game{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("game %s not found", gameID))
	}
	return g, nil
}
