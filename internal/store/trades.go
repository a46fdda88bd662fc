package store

import (
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// TradeRepo is the append-only per-symphony trade log (spec.md §6).
type TradeRepo struct {
	baseRepo
	rows map[string][]types.Trade
}

func newTradeRepo(logger *zap.Logger, path string) (*TradeRepo, error) {
	r := &TradeRepo{baseRepo: baseRepo{logger: logger, path: path}, rows: make(map[string][]types.Trade)}
	if err := loadJSON(path, &r.rows); err != nil {
		return nil, err
	}
	return r, nil
}

// Append records a fill event. Trades are never mutated or deleted.
func (r *TradeRepo) Append(t types.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[t.SymphonyID] = append(r.rows[t.SymphonyID], t)
	return saveJSON(r.path, r.rows)
}

func (r *TradeRepo) ListBySymphony(symphonyID string) []types.Trade {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Trade, len(r.rows[symphonyID]))
	copy(out, r.rows[symphonyID])
	return out
}
