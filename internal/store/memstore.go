package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a development and test implementation that keeps records in
// process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*GameRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*GameRecord)}
}

func (m *MemoryStore) CreateGameRecord(ctx context.Context, rec *GameRecord) error {
	if rec == nil {
		return ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.MovesUCI = append([]string(nil), rec.MovesUCI...)
	cp.MovesSAN = append([]string(nil), rec.MovesSAN...)
	m.records[rec.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateGameState(ctx context.Context, id, fen string, movesUCI, movesSAN []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.FEN = fen
	rec.MovesUCI = append([]string(nil), movesUCI...)
	rec.MovesSAN = append([]string(nil), movesSAN...)
	return nil
}

func (m *MemoryStore) UpdateGameResult(ctx context.Context, id, result, winnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Result = result
	rec.WinnerID = winnerID
	rec.EndedAt = time.Now()
	return nil
}

// Get returns a copy of the stored record, for assertions in tests.
func (m *MemoryStore) Get(id string) (GameRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return GameRecord{}, false
	}
	return *rec, true
}
