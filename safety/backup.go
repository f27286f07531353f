package safety

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BackupRecord describes one table-data backup taken before a
// destructive step. Records are keyed by content checksum and chained
// through ParentChecksum so incremental backups can be restored in
// order.
type BackupRecord struct {
	ID             string    `json:"id"`
	Table          string    `json:"table"`
	Checksum       string    `json:"checksum"`
	ParentChecksum string    `json:"parentChecksum,omitempty"`
	Rows           int       `json:"rows"`
	Path           string    `json:"path"`
	CreatedAt      time.Time `json:"createdAt"`
}

// BackupManifest is the persisted chain of backups per table.
type BackupManifest struct {
	Records []BackupRecord `json:"records"`
}

// NewBackupRecord checksums the backup payload and links it to the
// previous record in the chain (empty parent for a full backup).
func NewBackupRecord(table string, payload []byte, rows int, path, parentChecksum string, now time.Time) BackupRecord {
	sum := sha256.Sum256(payload)
	return BackupRecord{
		ID:             uuid.NewString(),
		Table:          table,
		Checksum:       fmt.Sprintf("%x", sum),
		ParentChecksum: parentChecksum,
		Rows:           rows,
		Path:           path,
		CreatedAt:      now,
	}
}

// Chain returns the records for a table ordered root-first by
// following ParentChecksum links, which is the order a restore must
// replay them in.
func (m *BackupManifest) Chain(table string) ([]BackupRecord, error) {
	byChecksum := make(map[string]BackupRecord)
	children := make(map[string]string) // parent checksum -> child checksum
	var root *BackupRecord
	for _, r := range m.Records {
		if r.Table != table {
			continue
		}
		r := r
		byChecksum[r.Checksum] = r
		if r.ParentChecksum == "" {
			if root != nil {
				return nil, fmt.Errorf("backup chain for %s has two roots (%s, %s)",
					table, root.Checksum, r.Checksum)
			}
			root = &r
		} else {
			if prev, dup := children[r.ParentChecksum]; dup {
				return nil, fmt.Errorf("backup chain for %s forks at %s (children %s, %s)",
					table, r.ParentChecksum, prev, r.Checksum)
			}
			children[r.ParentChecksum] = r.Checksum
		}
	}
	if root == nil {
		if len(byChecksum) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("backup chain for %s has no full-backup root", table)
	}

	chain := []BackupRecord{*root}
	cursor := root.Checksum
	for {
		next, ok := children[cursor]
		if !ok {
			break
		}
		rec, ok := byChecksum[next]
		if !ok {
			return nil, fmt.Errorf("backup chain for %s references missing checksum %s", table, next)
		}
		chain = append(chain, rec)
		cursor = next
	}
	if len(chain) != countForTable(m.Records, table) {
		return nil, fmt.Errorf("backup chain for %s is broken: %d of %d records linked",
			table, len(chain), countForTable(m.Records, table))
	}
	return chain, nil
}

// Latest returns the newest record in a table's chain, or nil when no
// backups exist for it.
func (m *BackupManifest) Latest(table string) (*BackupRecord, error) {
	chain, err := m.Chain(table)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, nil
	}
	last := chain[len(chain)-1]
	return &last, nil
}

func countForTable(records []BackupRecord, table string) int {
	n := 0
	for _, r := range records {
		if r.Table == table {
			n++
		}
	}
	return n
}
