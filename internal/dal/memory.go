package dal

import (
	"context"
	"sort"
	"sync"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// MemoryDAL implements PlayerDAL using in-memory storage
type MemoryDAL struct {
	mu       sync.RWMutex
	players  []models.PlayerRecord
	analyses []models.AnalysisRecord
}

// NewMemoryDAL creates a new in-memory data access layer seeded with the bundled dataset
func NewMemoryDAL() *MemoryDAL {
	return &MemoryDAL{
		players:  getDefaultPlayers(),
		analyses: []models.AnalysisRecord{},
	}
}

// NewMemoryDALWithPlayers seeds the store with the given records instead
func NewMemoryDALWithPlayers(players []models.PlayerRecord) *MemoryDAL {
	m := &MemoryDAL{analyses: []models.AnalysisRecord{}}
	m.players = append([]models.PlayerRecord(nil), players...)
	return m
}

func (m *MemoryDAL) ListPlayers(ctx context.Context) ([]models.PlayerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	players := make([]models.PlayerRecord, len(m.players))
	copy(players, m.players)
	return players, nil
}

func (m *MemoryDAL) RecordAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	if err := fillRecord(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, *rec)
	return nil
}

func (m *MemoryDAL) ListAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	m.mu.RLock()
	out := make([]models.AnalysisRecord, len(m.analyses))
	copy(out, m.analyses)
	m.mu.RUnlock()

	// newest first; records appended in the same millisecond keep reverse insertion order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS > out[j].TS })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryDAL) ClearAnalyses(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = []models.AnalysisRecord{}
	return nil
}

func (m *MemoryDAL) Close() error {
	return nil
}
