package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schemamancer/schemamancer/diff"
)

type TransitionMetadata struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Description string    `json:"description,omitempty"`
}

// Transition is a directed, immutable edge between two snapshots
// carrying the ordered steps that convert the from-model into the
// to-model. Applied to the from-snapshot's model, the steps must
// reproduce the to-snapshot's model exactly.
type Transition struct {
	FromHash string               `json:"fromHash"`
	ToHash   string               `json:"toHash"`
	Steps    []diff.MigrationStep `json:"steps"`
	Metadata TransitionMetadata   `json:"metadata"`
}

func (s *Store) transitionPath(fromHash, toHash string) string {
	return filepath.Join(s.root, "transitions", fromHash+"__"+toHash+".json")
}

// CreateTransition builds the edge record with fresh metadata.
func (s *Store) CreateTransition(fromHash, toHash string, steps []diff.MigrationStep, description string) *Transition {
	return &Transition{
		FromHash: fromHash,
		ToHash:   toHash,
		Steps:    steps,
		Metadata: TransitionMetadata{
			ID:          uuid.NewString(),
			CreatedAt:   time.Now().UTC(),
			Description: description,
		},
	}
}

// SaveTransition persists an edge keyed by (fromHash, toHash). Saving
// the same pair again is a no-op; transitions between the same content
// hashes carry the same steps by construction.
func (s *Store) SaveTransition(t *Transition) error {
	path := s.transitionPath(t.FromHash, t.ToHash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling transition: %v", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("writing transition: %v", err)
	}
	return nil
}

// GetDirectTransition looks up the single edge between two hashes.
func (s *Store) GetDirectTransition(fromHash, toHash string) (*Transition, error) {
	data, err := os.ReadFile(s.transitionPath(fromHash, toHash))
	if err != nil {
		return nil, fmt.Errorf("reading transition %s -> %s: %v", fromHash, toHash, err)
	}
	var t Transition
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing transition %s -> %s: %v", fromHash, toHash, err)
	}
	return &t, nil
}

// ListTransitions loads every persisted edge, ordered by creation time
// then key for deterministic graph construction.
func (s *Store) ListTransitions() ([]*Transition, error) {
	dir := filepath.Join(s.root, "transitions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading transitions directory: %v", err)
	}

	var out []*Transition
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading transition file %s: %v", entry.Name(), err)
		}
		var t Transition
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parsing transition file %s: %v", entry.Name(), err)
		}
		out = append(out, &t)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Metadata.CreatedAt.Equal(b.Metadata.CreatedAt) {
			return a.Metadata.CreatedAt.Before(b.Metadata.CreatedAt)
		}
		if a.FromHash != b.FromHash {
			return a.FromHash < b.FromHash
		}
		return a.ToHash < b.ToHash
	})
	return out, nil
}
