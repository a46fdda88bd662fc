package store

import (
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// UserRepo persists types.User rows keyed by ID.
type UserRepo struct {
	baseRepo
	rows map[string]types.User
}

func newUserRepo(logger *zap.Logger, path string) (*UserRepo, error) {
	r := &UserRepo{baseRepo: baseRepo{logger: logger, path: path}, rows: make(map[string]types.User)}
	if err := loadJSON(path, &r.rows); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *UserRepo) Get(id string) (types.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.rows[id]
	return u, ok
}

func (r *UserRepo) Put(u types.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[u.ID] = u
	return saveJSON(r.path, r.rows)
}

// ListWithBrokerCreds returns every user with broker credentials
// configured (spec.md §4.9 step 2's eligibility prefilter).
func (r *UserRepo) ListWithBrokerCreds() []types.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.User, 0, len(r.rows))
	for _, u := range r.rows {
		if u.HasBrokerCreds {
			out = append(out, u)
		}
	}
	return out
}
