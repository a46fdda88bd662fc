package store

import (
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// PerformanceRepo is the append-only per-symphony performance snapshot
// log, written post-window (spec.md §4.9 step 5, §6).
type PerformanceRepo struct {
	baseRepo
	rows map[string][]types.PerformanceMetrics
}

func newPerformanceRepo(logger *zap.Logger, path string) (*PerformanceRepo, error) {
	r := &PerformanceRepo{baseRepo: baseRepo{logger: logger, path: path}, rows: make(map[string][]types.PerformanceMetrics)}
	if err := loadJSON(path, &r.rows); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PerformanceRepo) Append(m types.PerformanceMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[m.SymphonyID] = append(r.rows[m.SymphonyID], m)
	return saveJSON(r.path, r.rows)
}

func (r *PerformanceRepo) Latest(symphonyID string) (types.PerformanceMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := r.rows[symphonyID]
	if len(rows) == 0 {
		return types.PerformanceMetrics{}, false
	}
	return rows[len(rows)-1], true
}
