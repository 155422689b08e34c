package reliability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karvelas/lodestar/internal/database"
)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func openTestDB(t *testing.T, dir, name string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(dir, name+".db"),
		Name: name,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBackupService_BackupAllWritesConsistentSet(t *testing.T) {
	dir := t.TempDir()
	universe := openTestDB(t, dir, "universe")
	cache := openTestDB(t, dir, "cache")

	backupDir := filepath.Join(dir, "backups")
	svc := NewBackupService([]*database.DB{universe, cache}, backupDir, 3, nil, testLogger())

	require.NoError(t, svc.BackupAll())

	sets, err := svc.ListBackups()
	require.NoError(t, err)
	require.Len(t, sets, 1)

	setDir := filepath.Join(backupDir, sets[0].Name)
	for _, name := range []string{"universe.db", "cache.db", "backup-metadata.json"} {
		_, err := os.Stat(filepath.Join(setDir, name))
		assert.NoError(t, err, name)
	}

	raw, err := os.ReadFile(filepath.Join(setDir, "backup-metadata.json"))
	require.NoError(t, err)
	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(raw, &metadata))
	require.Len(t, metadata.Databases, 2)
	assert.Equal(t, "universe", metadata.Databases[0].Name)
	assert.Contains(t, metadata.Databases[0].Checksum, "sha256:")
	assert.Greater(t, metadata.Databases[0].SizeBytes, int64(0))
}

func TestBackupService_RotationKeepsNewestSets(t *testing.T) {
	dir := t.TempDir()
	universe := openTestDB(t, dir, "universe")

	backupDir := filepath.Join(dir, "backups")

	// Pre-seed old sets; directory names carry the timestamp.
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		name := base.Add(time.Duration(i) * time.Hour).Format(backupDirFormat)
		require.NoError(t, os.MkdirAll(filepath.Join(backupDir, name), 0755))
	}

	svc := NewBackupService([]*database.DB{universe}, backupDir, 3, nil, testLogger())
	require.NoError(t, svc.BackupAll())

	sets, err := svc.ListBackups()
	require.NoError(t, err)
	require.Len(t, sets, 3)

	// The freshly written set is the newest and must survive.
	for i := 1; i < len(sets); i++ {
		assert.True(t, sets[i-1].Timestamp.After(sets[i].Timestamp))
	}
}

func TestBackupService_ListBackupsIgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(filepath.Join(backupDir, "not-a-backup"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "stray.txt"), []byte("x"), 0644))

	svc := NewBackupService(nil, backupDir, 3, nil, testLogger())
	sets, err := svc.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, sets)
}
