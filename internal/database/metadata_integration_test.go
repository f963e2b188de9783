package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	_, err := db.GetMetadata(ctx, "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)

	steps := []struct {
		key, value string
	}{
		{"schema_note", "first"},
		{"schema_note", "second"},
		{"empty", ""},
		{"other", "value"},
	}
	for _, s := range steps {
		require.NoError(t, db.SetMetadata(ctx, s.key, s.value))
	}

	for key, want := range map[string]string{"schema_note": "second", "empty": "", "other": "value"} {
		got, err := db.GetMetadata(ctx, key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}
}

func TestMetadataConcurrentWritersIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("worker_%d", i)
			_ = db.SetMetadata(ctx, key, key+"_done")
			_, _ = db.GetMetadata(ctx, key)
		}()
	}
	wg.Wait()

	for i := range 10 {
		key := fmt.Sprintf("worker_%d", i)
		got, err := db.GetMetadata(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, key+"_done", got)
	}
}

func TestLastReindexRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	got, err := db.GetLastReindex(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "zero before the first run")

	want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, db.SetLastReindex(ctx, want))
	got, err = db.GetLastReindex(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(want), "got %v", got)

	require.NoError(t, db.SetLastReindex(ctx, time.Time{}))
	got, err = db.GetLastReindex(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "zero after clearing")

	require.NoError(t, db.SetMetadata(ctx, lastReindexKey, "not a time"))
	_, err = db.GetLastReindex(ctx)
	assert.Error(t, err)
}
