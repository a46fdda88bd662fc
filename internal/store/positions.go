package store

import (
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// PositionRepo persists the current (user, symphony, ticker) position
// time-series (spec.md §6). Rows are keyed by symphony id then ticker;
// a position crossing exactly zero is deleted rather than kept at
// zero quantity (types.Position's Archived rule).
type PositionRepo struct {
	baseRepo
	rows map[string]map[string]types.Position
}

func newPositionRepo(logger *zap.Logger, path string) (*PositionRepo, error) {
	r := &PositionRepo{baseRepo: baseRepo{logger: logger, path: path}, rows: make(map[string]map[string]types.Position)}
	if err := loadJSON(path, &r.rows); err != nil {
		return nil, err
	}
	return r, nil
}

// ListBySymphony returns every open position for a symphony.
func (r *PositionRepo) ListBySymphony(symphonyID string) []types.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bySymphony := r.rows[symphonyID]
	out := make([]types.Position, 0, len(bySymphony))
	for _, p := range bySymphony {
		out = append(out, p)
	}
	return out
}

// Upsert writes a single position row; the scheduler uses it to persist
// the positions a Trade Executor run reports. Post-window reconciliation
// uses ReplaceAll instead (spec.md §4.9 step 5).
func (r *PositionRepo) Upsert(p types.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows[p.SymphonyID] == nil {
		r.rows[p.SymphonyID] = make(map[string]types.Position)
	}
	if p.Quantity.IsZero() {
		delete(r.rows[p.SymphonyID], p.Ticker)
	} else {
		r.rows[p.SymphonyID][p.Ticker] = p
	}
	return saveJSON(r.path, r.rows)
}

// ReplaceAll overwrites every position for a symphony with fresh rows,
// used by reconciliation when the broker's position set is authoritative.
func (r *PositionRepo) ReplaceAll(symphonyID string, positions []types.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fresh := make(map[string]types.Position, len(positions))
	for _, p := range positions {
		if !p.Quantity.IsZero() {
			fresh[p.Ticker] = p
		}
	}
	r.rows[symphonyID] = fresh
	return saveJSON(r.path, r.rows)
}
