package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnvironmentState is the one mutable record in the store: the pointer
// from a deployment environment name to the snapshot currently applied
// there. Exactly one record exists per environment.
type EnvironmentState struct {
	Environment     string    `json:"environment"`
	CurrentSnapshot string    `json:"currentSnapshot,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// StateConflictError reports a compare-and-swap failure: another writer
// moved the environment pointer between the caller's read and write.
// Retry with a fresh read.
type StateConflictError struct {
	Environment string
	Expected    string
	Actual      string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("environment %s moved from %q to %q since it was read",
		e.Environment, e.Expected, e.Actual)
}

func (s *Store) statePath(environment string) string {
	return filepath.Join(s.root, "environments", environment+".json")
}

// GetOrCreateState returns the state record for an environment,
// creating an empty one (no snapshot applied yet) on first use.
func (s *Store) GetOrCreateState(environment string) (*EnvironmentState, error) {
	state, err := s.loadState(environment)
	if err == nil {
		return state, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading environment state %s: %v", environment, err)
	}

	state = &EnvironmentState{
		Environment: environment,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.writeState(state); err != nil {
		return nil, err
	}
	return state, nil
}

// UpdateState moves the environment pointer with optimistic
// concurrency: the write only succeeds if the current pointer still
// equals expectedCurrent. Callers are responsible for having validated
// that a transition path exists from the current snapshot to the
// target; the tracker records, it does not enforce.
func (s *Store) UpdateState(environment, snapshotHash, expectedCurrent string) (*EnvironmentState, error) {
	state, err := s.GetOrCreateState(environment)
	if err != nil {
		return nil, err
	}
	if state.CurrentSnapshot != expectedCurrent {
		return nil, &StateConflictError{
			Environment: environment,
			Expected:    expectedCurrent,
			Actual:      state.CurrentSnapshot,
		}
	}

	state.CurrentSnapshot = snapshotHash
	state.UpdatedAt = time.Now().UTC()
	if err := s.writeState(state); err != nil {
		return nil, err
	}
	return state, nil
}

// GetCurrentSnapshot returns the applied snapshot hash for an
// environment, empty when nothing has been applied yet.
func (s *Store) GetCurrentSnapshot(environment string) (string, error) {
	state, err := s.GetOrCreateState(environment)
	if err != nil {
		return "", err
	}
	return state.CurrentSnapshot, nil
}

// ListEnvironments returns the names of all tracked environments.
func (s *Store) ListEnvironments() ([]string, error) {
	dir := filepath.Join(s.root, "environments")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading environments directory: %v", err)
	}
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		out = append(out, name[:len(name)-len(".json")])
	}
	return out, nil
}

func (s *Store) loadState(environment string) (*EnvironmentState, error) {
	data, err := os.ReadFile(s.statePath(environment))
	if err != nil {
		return nil, err
	}
	var state EnvironmentState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing environment state %s: %v", environment, err)
	}
	return &state, nil
}

func (s *Store) writeState(state *EnvironmentState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling environment state: %v", err)
	}
	if err := writeFileAtomic(s.statePath(state.Environment), data); err != nil {
		return fmt.Errorf("writing environment state: %v", err)
	}
	return nil
}
