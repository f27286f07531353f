package safety

import (
	"fmt"
	"time"

	"github.com/schemamancer/schemamancer/diff"
)

// DefaultShadowRetention is how long a shadowed column is kept before
// it becomes eligible for cleanup.
const DefaultShadowRetention = 30 * 24 * time.Hour

// ShadowEntry records one column that was renamed to a shadow name
// instead of being dropped, so it can be restored until it expires.
type ShadowEntry struct {
	ShadowName string    `json:"shadowName"`
	Table      string    `json:"table"`
	Column     string    `json:"column"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ShadowManifest is the persisted record of all live shadow columns.
type ShadowManifest struct {
	Entries []ShadowEntry `json:"entries"`
}

// ShadowName derives the hidden column name for a shadowed column.
func ShadowName(column string, at time.Time) string {
	return fmt.Sprintf("_shadow_%s_%d", column, at.Unix())
}

// ApplyShadowPlan rewrites every drop_column step into a rename to a
// shadow name, returning the rewritten step list and the manifest
// entries to persist. Steps other than drop_column pass through
// unchanged. Table drops are not shadowed; they go through the backup
// path instead.
func ApplyShadowPlan(steps []diff.MigrationStep, retention time.Duration, now time.Time) ([]diff.MigrationStep, []ShadowEntry) {
	if retention <= 0 {
		retention = DefaultShadowRetention
	}

	out := make([]diff.MigrationStep, 0, len(steps))
	var entries []ShadowEntry
	for _, step := range steps {
		if step.Type != diff.StepDropColumn {
			out = append(out, step)
			continue
		}
		shadow := ShadowName(step.ColumnName, now)
		out = append(out, diff.MigrationStep{
			Type:     diff.StepRenameColumn,
			Table:    step.Table,
			FromName: step.ColumnName,
			ToName:   shadow,
		})
		entries = append(entries, ShadowEntry{
			ShadowName: shadow,
			Table:      step.Table,
			Column:     step.ColumnName,
			CreatedAt:  now,
			ExpiresAt:  now.Add(retention),
		})
	}
	return out, entries
}

// RestoreStep produces the rename that brings a shadowed column back
// under its original name.
func RestoreStep(entry ShadowEntry) diff.MigrationStep {
	return diff.MigrationStep{
		Type:     diff.StepRenameColumn,
		Table:    entry.Table,
		FromName: entry.ShadowName,
		ToName:   entry.Column,
	}
}

// ExpiredEntries returns the manifest entries whose retention window
// has passed; those shadow columns may now be dropped for real.
func (m *ShadowManifest) ExpiredEntries(now time.Time) []ShadowEntry {
	var out []ShadowEntry
	for _, e := range m.Entries {
		if !now.Before(e.ExpiresAt) {
			out = append(out, e)
		}
	}
	return out
}

// CleanupSteps converts expired entries into the drop_column steps
// that reclaim the shadow columns.
func CleanupSteps(expired []ShadowEntry) []diff.MigrationStep {
	out := make([]diff.MigrationStep, 0, len(expired))
	for _, e := range expired {
		out = append(out, diff.MigrationStep{
			Type:       diff.StepDropColumn,
			Table:      e.Table,
			ColumnName: e.ShadowName,
		})
	}
	return out
}
