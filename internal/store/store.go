// Package store provides the persistent-state repositories named in
// spec.md §6: Users, Symphonies, Positions, Trades, and
// PerformanceMetrics. It follows the file-backed, in-memory-cache
// pattern of internal/data's market-data store — a JSON file per
// collection under a data directory, loaded once and rewritten on
// every mutation. A real deployment would swap this for a database-
// backed implementation behind the same repository interfaces.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Store bundles all five repositories behind one constructor so
// callers (the scheduler, the CLI) wire a single data directory.
type Store struct {
	Users       *UserRepo
	Symphonies  *SymphonyRepo
	Positions   *PositionRepo
	Trades      *TradeRepo
	Performance *PerformanceRepo
}

// Open loads (or initializes) all five collections under dataDir.
func Open(logger *zap.Logger, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	users, err := newUserRepo(logger, filepath.Join(dataDir, "users.json"))
	if err != nil {
		return nil, err
	}
	symphonies, err := newSymphonyRepo(logger, filepath.Join(dataDir, "symphonies.json"))
	if err != nil {
		return nil, err
	}
	positions, err := newPositionRepo(logger, filepath.Join(dataDir, "positions.json"))
	if err != nil {
		return nil, err
	}
	trades, err := newTradeRepo(logger, filepath.Join(dataDir, "trades.json"))
	if err != nil {
		return nil, err
	}
	performance, err := newPerformanceRepo(logger, filepath.Join(dataDir, "performance.json"))
	if err != nil {
		return nil, err
	}

	return &Store{
		Users:       users,
		Symphonies:  symphonies,
		Positions:   positions,
		Trades:      trades,
		Performance: performance,
	}, nil
}

// loadJSON reads path into v; a missing file is not an error, it just
// leaves v at its zero value (mirrors internal/data's os.IsNotExist
// handling for first-run stores).
func loadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: parse %s: %w", path, err)
	}
	return nil
}

func saveJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	return nil
}

type baseRepo struct {
	mu     sync.RWMutex
	logger *zap.Logger
	path   string
}
