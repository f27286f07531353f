package safety

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemamancer/schemamancer/diff"
	"github.com/schemamancer/schemamancer/model"
)

func TestApplyShadowPlan(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	steps := []diff.MigrationStep{
		{Type: diff.StepAddColumn, Table: "users", Column: &model.Column{Name: "bio", Type: "text", Nullable: true}},
		{Type: diff.StepDropColumn, Table: "users", ColumnName: "legacy"},
		{Type: diff.StepDropTable, Table: "old_stats"},
	}

	rewritten, entries := ApplyShadowPlan(steps, 7*24*time.Hour, now)

	require.Len(t, rewritten, 3)
	assert.Equal(t, diff.StepAddColumn, rewritten[0].Type)

	shadow := rewritten[1]
	assert.Equal(t, diff.StepRenameColumn, shadow.Type)
	assert.Equal(t, "legacy", shadow.FromName)
	assert.Equal(t, fmt.Sprintf("_shadow_legacy_%d", now.Unix()), shadow.ToName)

	// Table drops are not shadowed.
	assert.Equal(t, diff.StepDropTable, rewritten[2].Type)

	require.Len(t, entries, 1)
	assert.Equal(t, "users", entries[0].Table)
	assert.Equal(t, "legacy", entries[0].Column)
	assert.Equal(t, now.Add(7*24*time.Hour), entries[0].ExpiresAt)
}

func TestApplyShadowPlanDefaultRetention(t *testing.T) {
	now := time.Now().UTC()
	steps := []diff.MigrationStep{{Type: diff.StepDropColumn, Table: "users", ColumnName: "email"}}

	_, entries := ApplyShadowPlan(steps, 0, now)
	require.Len(t, entries, 1)
	assert.Equal(t, now.Add(DefaultShadowRetention), entries[0].ExpiresAt)
}

func TestRestoreStep(t *testing.T) {
	entry := ShadowEntry{ShadowName: "_shadow_email_1700000000", Table: "users", Column: "email"}
	step := RestoreStep(entry)
	assert.Equal(t, diff.StepRenameColumn, step.Type)
	assert.Equal(t, "_shadow_email_1700000000", step.FromName)
	assert.Equal(t, "email", step.ToName)
}

func TestShadowExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	manifest := &ShadowManifest{Entries: []ShadowEntry{
		{ShadowName: "_shadow_a_1", Table: "users", Column: "a", ExpiresAt: now.Add(-time.Hour)},
		{ShadowName: "_shadow_b_2", Table: "users", Column: "b", ExpiresAt: now}, // expires exactly now
		{ShadowName: "_shadow_c_3", Table: "users", Column: "c", ExpiresAt: now.Add(time.Hour)},
	}}

	expired := manifest.ExpiredEntries(now)
	require.Len(t, expired, 2)

	cleanup := CleanupSteps(expired)
	require.Len(t, cleanup, 2)
	assert.Equal(t, diff.StepDropColumn, cleanup[0].Type)
	assert.Equal(t, "_shadow_a_1", cleanup[0].ColumnName)
	assert.Equal(t, "_shadow_b_2", cleanup[1].ColumnName)
}

func TestBackupChain(t *testing.T) {
	now := time.Now().UTC()
	full := NewBackupRecord("users", []byte("full"), 100, "backups/full.json", "", now)
	inc1 := NewBackupRecord("users", []byte("inc1"), 10, "backups/inc1.json", full.Checksum, now.Add(time.Hour))
	inc2 := NewBackupRecord("users", []byte("inc2"), 3, "backups/inc2.json", inc1.Checksum, now.Add(2*time.Hour))
	other := NewBackupRecord("orders", []byte("orders"), 5, "backups/orders.json", "", now)

	t.Run("chain orders root first", func(t *testing.T) {
		// Deliberately out of order in the manifest.
		m := &BackupManifest{Records: []BackupRecord{inc2, other, full, inc1}}
		chain, err := m.Chain("users")
		require.NoError(t, err)
		require.Len(t, chain, 3)
		assert.Equal(t, full.Checksum, chain[0].Checksum)
		assert.Equal(t, inc1.Checksum, chain[1].Checksum)
		assert.Equal(t, inc2.Checksum, chain[2].Checksum)
	})

	t.Run("latest", func(t *testing.T) {
		m := &BackupManifest{Records: []BackupRecord{full, inc1, inc2}}
		latest, err := m.Latest("users")
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, inc2.Checksum, latest.Checksum)

		none, err := m.Latest("ghost")
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("forked chain is rejected", func(t *testing.T) {
		fork := NewBackupRecord("users", []byte("fork"), 1, "backups/fork.json", full.Checksum, now)
		m := &BackupManifest{Records: []BackupRecord{full, inc1, fork}}
		_, err := m.Chain("users")
		assert.Error(t, err)
	})

	t.Run("two roots are rejected", func(t *testing.T) {
		second := NewBackupRecord("users", []byte("second full"), 100, "backups/full2.json", "", now)
		m := &BackupManifest{Records: []BackupRecord{full, second}}
		_, err := m.Chain("users")
		assert.Error(t, err)
	})

	t.Run("missing root is rejected", func(t *testing.T) {
		m := &BackupManifest{Records: []BackupRecord{inc1, inc2}}
		_, err := m.Chain("users")
		assert.Error(t, err)
	})
}
