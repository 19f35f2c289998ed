package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/printmarket/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"create orders", "create_orders"},
		{"Add-Producer-Rates", "add_producer_rates"},
		{"ADD_DISPUTE_WINDOW", "add_dispute_window"},
		{"add__outbox__index", "add_outbox_index"},
		{"Seed Materials 2", "seed_materials_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)

	mf, err := createMigrationAt(dir, "add order tracking", "Track carrier numbers", now)
	require.NoError(t, err)

	assert.Equal(t, "20260301120500", mf.Version)
	assert.Equal(t, "add_order_tracking", mf.Name)
	assert.Equal(t, filepath.Join(dir, "20260301120500_add_order_tracking.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "20260301120500_add_order_tracking.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add_order_tracking")
	assert.Contains(t, string(up), "Track carrier numbers")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.ErrorContains(t, err, "no usable characters")
}

func TestCreateMigration_DoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := createMigrationAt(dir, "init", "", now)
	require.NoError(t, err)
	_, err = createMigrationAt(dir, "init", "", now)
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"20260301120200_orders.up.sql":    {Data: []byte("--")},
		"20260301120200_orders.down.sql":  {Data: []byte("--")},
		"20260301120000_catalog.up.sql":   {Data: []byte("--")},
		"20260301120000_catalog.down.sql": {Data: []byte("--")},
		"README.md":                       {Data: []byte("docs")},
		"embed.go":                        {Data: []byte("package migrations")},
		"old.up.sql/keep":                 {Data: []byte("dir, not a migration")},
	}

	names, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260301120000_catalog", "20260301120200_orders"}, names)
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	names, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "absent")))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestListMigrations_EmbeddedSchema(t *testing.T) {
	names, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20260301120000_create_catalog",
		"20260301120100_create_producer_rates",
		"20260301120200_create_orders",
		"20260301120300_create_messaging",
		"20260301120400_create_outbox_events",
	}, names)

	for _, name := range names {
		_, err := migrations.FS.Open(name + ".down.sql")
		assert.NoError(t, err, "missing rollback for %s", name)
	}
}
