// Package store provides crash-safe run-state persistence using JSON files.
//
// Each symbol's state is stored as a separate file: state_<symbol>.json.
// Writes use atomic file replacement (write to .tmp, then rename) to prevent
// corruption from partial writes or crashes mid-save. The engine calls
// SaveState when a symbol stops and on shutdown, and LoadState when a
// symbol starts to restore balance and position state.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"perpgrid/pkg/types"
)

// SymbolState is the persisted per-symbol run state: balance and both
// sides' positions, enough to resume a grid without re-deriving it from
// exchange fills history.
type SymbolState struct {
	Symbol      string         `json:"symbol"`
	Balance     float64        `json:"balance"`
	LongPSize   float64        `json:"long_psize"`
	LongPPrice  float64        `json:"long_pprice"`
	ShortPSize  float64        `json:"short_psize"`
	ShortPPrice float64        `json:"short_pprice"`
	OpenOrders  []types.OpenOrder `json:"open_orders"`
}

// Store persists per-symbol state to JSON files in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string     // directory containing state_*.json files
	mu  sync.Mutex // serializes all file operations
}

// Open creates a store backed by the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

// SaveState atomically persists the current run state for a symbol.
// It writes to a .tmp file first, then renames over the target to ensure
// the file is never left in a partial state (crash-safe).
func (s *Store) SaveState(symbol string, state SymbolState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	path := s.pathFor(symbol)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadState restores run state for a symbol from disk.
// Returns nil, nil if no saved state exists (fresh symbol).
func (s *Store) LoadState(symbol string) (*SymbolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pathFor(symbol)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var state SymbolState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &state, nil
}

func (s *Store) pathFor(symbol string) string {
	return filepath.Join(s.dir, "state_"+symbol+".json")
}
