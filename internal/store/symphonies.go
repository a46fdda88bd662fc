package store

import (
	"sort"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// SymphonyRepo persists types.Symphony rows keyed by ID.
type SymphonyRepo struct {
	baseRepo
	rows map[string]types.Symphony
}

func newSymphonyRepo(logger *zap.Logger, path string) (*SymphonyRepo, error) {
	r := &SymphonyRepo{baseRepo: baseRepo{logger: logger, path: path}, rows: make(map[string]types.Symphony)}
	if err := loadJSON(path, &r.rows); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SymphonyRepo) Get(id string) (types.Symphony, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rows[id]
	return s, ok
}

func (r *SymphonyRepo) Put(s types.Symphony) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[s.ID] = s
	return saveJSON(r.path, r.rows)
}

// ListActive returns every active symphony, sorted by ID so that
// scheduler batches are drawn in stable order (spec.md §4.9
// "Determinism/fairness").
func (r *SymphonyRepo) ListActive() []types.Symphony {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Symphony, 0, len(r.rows))
	for _, s := range r.rows {
		if s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
