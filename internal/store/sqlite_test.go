package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zenithmaint/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestItemLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(openTestDB(t))

	created := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	id, err := repo.CreateItem(ctx, domain.Item{Title: "Write report", Type: domain.ItemTypeNote, CreatedAt: created})
	require.NoError(t, err)
	assert.Contains(t, id, "itm_")

	it, err := repo.GetItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Write report", it.Title)
	assert.Equal(t, domain.ItemTypeNote, it.Type)
	assert.True(t, it.CreatedAt.Equal(created))
	assert.True(t, it.UpdatedAt.Equal(created))

	items, err := repo.ListItems(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, repo.DeleteItem(ctx, id))
	_, err = repo.GetItem(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.DeleteItem(ctx, id), ErrNotFound)
}

func TestCreateItemDefaultsType(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(openTestDB(t))

	id, err := repo.CreateItem(ctx, domain.Item{Title: "untyped"})
	require.NoError(t, err)
	it, err := repo.GetItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemTypeTask, it.Type)
}

func TestDeleteOrphanedSubtasks(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(openTestDB(t))

	keep, err := repo.CreateItem(ctx, domain.Item{Title: "keep"})
	require.NoError(t, err)
	gone, err := repo.CreateItem(ctx, domain.Item{Title: "gone"})
	require.NoError(t, err)

	_, err = repo.CreateSubtask(ctx, domain.Subtask{ParentItemID: keep, Title: "a"})
	require.NoError(t, err)
	_, err = repo.CreateSubtask(ctx, domain.Subtask{ParentItemID: gone, Title: "b"})
	require.NoError(t, err)
	_, err = repo.CreateSubtask(ctx, domain.Subtask{ParentItemID: gone, Title: "c"})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteItem(ctx, gone))

	n, err := repo.DeleteOrphanedSubtasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	subs, err := repo.ListSubtasks(ctx, keep)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "a", subs[0].Title)

	n, err = repo.DeleteOrphanedSubtasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCountQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(openTestDB(t))
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	seed := []domain.Item{
		{Title: "old done", Type: domain.ItemTypeTask, IsCompleted: true, CreatedAt: now.AddDate(0, 0, -120)},
		{Title: "old open", Type: domain.ItemTypeTask, CreatedAt: now.AddDate(0, 0, -100)},
		{Title: "new done", Type: domain.ItemTypeIdea, IsCompleted: true, CreatedAt: now.AddDate(0, 0, -1)},
	}
	for _, it := range seed {
		_, err := repo.CreateItem(ctx, it)
		require.NoError(t, err)
	}

	total, err := repo.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	byType, err := repo.CountItemsByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{domain.ItemTypeTask: 2, domain.ItemTypeIdea: 1}, byType)

	cutoff := now.AddDate(0, 0, -90)
	old, err := repo.CountItemsOlderThan(ctx, cutoff, false)
	require.NoError(t, err)
	assert.Equal(t, 2, old)

	oldDone, err := repo.CountItemsOlderThan(ctx, cutoff, true)
	require.NoError(t, err)
	assert.Equal(t, 1, oldDone)
}
