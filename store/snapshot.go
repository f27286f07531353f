package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/schemamancer/schemamancer/model"
)

// SnapshotMetadata travels with a snapshot but does not contribute to
// its hash; identity is the model content alone.
type SnapshotMetadata struct {
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Snapshot is an immutable, content-addressed schema version. The hash
// is taken from the embedded model, never recomputed independently, so
// snapshot identity always equals model identity. ParentHashes holds
// one entry for a linear commit and two for a merge.
type Snapshot struct {
	Hash         string           `json:"hash"`
	Model        *model.Model     `json:"model"`
	Metadata     SnapshotMetadata `json:"metadata"`
	ParentHashes []string         `json:"parentHashes,omitempty"`
}

// IntegrityError reports a snapshot hash that already exists with
// different content. Under correct hashing this cannot happen, so it is
// fatal and never silently overwritten.
type IntegrityError struct {
	Hash string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("snapshot %s already exists with different content", e.Hash)
}

// manifestEntry is the index record kept per snapshot so listings and
// existence checks never deserialize full models.
type manifestEntry struct {
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	Description string    `json:"description,omitempty"`
}

type manifest struct {
	Snapshots map[string]manifestEntry `json:"snapshots"`
}

// Store is the on-disk layout rooted at the configured storage path:
// snapshots/<hash>.json, transitions/<from>__<to>.json,
// environments/<name>.json and manifest.json. All writes go through a
// temp file and rename so readers never observe partial records.
type Store struct {
	root string
}

func New(root string) (*Store, error) {
	for _, dir := range []string{root, filepath.Join(root, "snapshots"), filepath.Join(root, "transitions"), filepath.Join(root, "environments")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %v", err)
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) snapshotPath(hash string) string {
	return filepath.Join(s.root, "snapshots", hash+".json")
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.root, "manifest.json")
}

// CreateSnapshot wraps a model with metadata. The hash is the model's
// own content hash. Zero, one or two parents are accepted.
func (s *Store) CreateSnapshot(m *model.Model, meta SnapshotMetadata, parents ...string) (*Snapshot, error) {
	hash, err := m.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing model: %v", err)
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	return &Snapshot{
		Hash:         hash,
		Model:        m,
		Metadata:     meta,
		ParentHashes: parents,
	}, nil
}

// SaveSnapshot persists a snapshot. Saving a hash that already exists
// with identical model content is a no-op (content addressing makes the
// write idempotent); the same hash with different content is an
// IntegrityError.
func (s *Store) SaveSnapshot(snap *Snapshot) error {
	path := s.snapshotPath(snap.Hash)
	if existing, err := s.LoadSnapshot(snap.Hash); err == nil {
		same, err := sameModelContent(existing.Model, snap.Model)
		if err != nil {
			return err
		}
		if !same {
			return &IntegrityError{Hash: snap.Hash}
		}
		return nil
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %v", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("writing snapshot: %v", err)
	}

	return s.updateManifest(func(m *manifest) {
		m.Snapshots[snap.Hash] = manifestEntry{
			CreatedAt:   snap.Metadata.CreatedAt,
			CreatedBy:   snap.Metadata.CreatedBy,
			Description: snap.Metadata.Description,
		}
	})
}

func (s *Store) LoadSnapshot(hash string) (*Snapshot, error) {
	data, err := os.ReadFile(s.snapshotPath(hash))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %v", hash, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %v", hash, err)
	}
	return &snap, nil
}

// HasSnapshot checks existence through the manifest without touching
// the snapshot file.
func (s *Store) HasSnapshot(hash string) (bool, error) {
	m, err := s.loadManifest()
	if err != nil {
		return false, err
	}
	_, ok := m.Snapshots[hash]
	return ok, nil
}

// ListSnapshots returns all known hashes ordered by creation time,
// oldest first, tie-broken by hash.
func (s *Store) ListSnapshots() ([]string, error) {
	m, err := s.loadManifest()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m.Snapshots))
	for hash := range m.Snapshots {
		out = append(out, hash)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := m.Snapshots[out[i]], m.Snapshots[out[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return out[i] < out[j]
	})
	return out, nil
}

// SnapshotInfo returns the manifest entry for one hash.
func (s *Store) SnapshotInfo(hash string) (time.Time, string, string, error) {
	m, err := s.loadManifest()
	if err != nil {
		return time.Time{}, "", "", err
	}
	entry, ok := m.Snapshots[hash]
	if !ok {
		return time.Time{}, "", "", fmt.Errorf("snapshot %s not in manifest", hash)
	}
	return entry.CreatedAt, entry.CreatedBy, entry.Description, nil
}

func (s *Store) loadManifest() (*manifest, error) {
	data, err := os.ReadFile(s.manifestPath())
	if os.IsNotExist(err) {
		return &manifest{Snapshots: make(map[string]manifestEntry)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %v", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %v", err)
	}
	if m.Snapshots == nil {
		m.Snapshots = make(map[string]manifestEntry)
	}
	return &m, nil
}

func (s *Store) updateManifest(mutate func(*manifest)) error {
	m, err := s.loadManifest()
	if err != nil {
		return err
	}
	mutate(m)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %v", err)
	}
	if err := writeFileAtomic(s.manifestPath(), data); err != nil {
		return fmt.Errorf("writing manifest: %v", err)
	}
	return nil
}

func sameModelContent(a, b *model.Model) (bool, error) {
	aJSON, err := a.CanonicalJSON()
	if err != nil {
		return false, fmt.Errorf("canonicalizing stored model: %v", err)
	}
	bJSON, err := b.CanonicalJSON()
	if err != nil {
		return false, fmt.Errorf("canonicalizing model: %v", err)
	}
	return bytes.Equal(aJSON, bJSON), nil
}

// writeFileAtomic writes through a temp file in the target directory
// and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
