package archive

import (
	"context"
	"sync"

	"github.com/wisko/chess-arena/internal/game"
)

// Memory is a development/test archive used when no DATABASE_URL is set.
type Memory struct {
	mu      sync.RWMutex
	results map[string]Entry
}

type Entry struct {
	Game   *game.Game
	Method string
	PGN    string
}

func NewMemory() *Memory {
	return &Memory{results: make(map[string]Entry)}
}

func (m *Memory) SaveResult(_ context.Context, g *game.Game, method string) error {
	if g == nil {
		return nil
	}
	copy := *g
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[g.ID] = Entry{
		Game:   &copy,
		Method: method,
		PGN:    buildPGN(&copy, mapResultToPGN(copy.Outcome), method),
	}
	return nil
}

// Get returns the stored entry for a game id, if any.
func (m *Memory) Get(gameID string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.results[gameID]
	return e, ok
}

// Len reports how many results have been stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}
