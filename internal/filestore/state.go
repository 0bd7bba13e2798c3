package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rmarchant/rebal-backend/internal/models"
)

// StateStore keeps the RuntimeState in a single JSON file. Writes go through
// a temp file and rename so a crash mid-write can't corrupt the record.
type StateStore struct {
	mu   sync.Mutex
	path string
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load returns the stored state for wallet, or (nil, nil) when the file
// doesn't exist or belongs to a different wallet.
func (s *StateStore) Load(_ context.Context, wallet string) (*models.RuntimeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var state models.RuntimeState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	if state.Wallet != "" && state.Wallet != wallet {
		return nil, nil
	}
	state.Wallet = wallet
	return &state, nil
}

func (s *StateStore) Save(_ context.Context, state *models.RuntimeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
