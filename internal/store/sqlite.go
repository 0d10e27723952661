package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"zenithmaint/internal/domain"
)

var ErrNotFound = errors.New("not found")

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS items (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  item_type TEXT NOT NULL DEFAULT 'task',
  is_completed INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_type ON items(item_type);
CREATE INDEX IF NOT EXISTS idx_items_created ON items(is_completed, created_at);
CREATE TABLE IF NOT EXISTS subtasks (
  id TEXT PRIMARY KEY,
  parent_item_id TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  is_completed INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subtasks_parent ON subtasks(parent_item_id);
`
	_, err := db.Exec(schema)
	return err
}

type Repository interface {
	CreateItem(ctx context.Context, it domain.Item) (string, error)
	GetItem(ctx context.Context, id string) (domain.Item, error)
	ListItems(ctx context.Context, limit int) ([]domain.Item, error)
	DeleteItem(ctx context.Context, id string) error

	CreateSubtask(ctx context.Context, st domain.Subtask) (string, error)
	ListSubtasks(ctx context.Context, parentID string) ([]domain.Subtask, error)

	// Maintenance queries
	CountItems(ctx context.Context) (int, error)
	CountItemsByType(ctx context.Context) (map[string]int, error)
	CountItemsOlderThan(ctx context.Context, before time.Time, completedOnly bool) (int, error)
	DeleteOrphanedSubtasks(ctx context.Context) (int, error)
}

type sqliteRepo struct{ db *sql.DB }

func NewSQLiteRepo(db *sql.DB) Repository { return &sqliteRepo{db: db} }

func (r *sqliteRepo) CreateItem(ctx context.Context, it domain.Item) (string, error) {
	id := it.ID
	if id == "" {
		id = "itm_" + uuid.NewString()
	}
	if it.Type == "" {
		it.Type = domain.ItemTypeTask
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = it.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO items (id,title,item_type,is_completed,created_at,updated_at)
VALUES (?,?,?,?,?,?)
`, id, it.Title, it.Type, it.IsCompleted, it.CreatedAt.UTC(), it.UpdatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("insert item: %w", err)
	}
	return id, nil
}

func (r *sqliteRepo) GetItem(ctx context.Context, id string) (domain.Item, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,title,item_type,is_completed,created_at,updated_at FROM items WHERE id=?`, id)
	var it domain.Item
	err := row.Scan(&it.ID, &it.Title, &it.Type, &it.IsCompleted, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, ErrNotFound
	}
	if err != nil {
		return domain.Item{}, err
	}
	return it, nil
}

func (r *sqliteRepo) ListItems(ctx context.Context, limit int) ([]domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,title,item_type,is_completed,created_at,updated_at
FROM items ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Type, &it.IsCompleted, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// DeleteItem removes the item only; its subtasks become orphans until the
// orphan cleanup runs.
func (r *sqliteRepo) DeleteItem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM items WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRepo) CreateSubtask(ctx context.Context, st domain.Subtask) (string, error) {
	id := st.ID
	if id == "" {
		id = "sub_" + uuid.NewString()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO subtasks (id,parent_item_id,title,is_completed,created_at) VALUES (?,?,?,?,?)
`, id, st.ParentItemID, st.Title, st.IsCompleted, st.CreatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("insert subtask: %w", err)
	}
	return id, nil
}

func (r *sqliteRepo) ListSubtasks(ctx context.Context, parentID string) ([]domain.Subtask, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,parent_item_id,title,is_completed,created_at
FROM subtasks WHERE parent_item_id=? ORDER BY created_at`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subtasks []domain.Subtask
	for rows.Next() {
		var st domain.Subtask
		if err := rows.Scan(&st.ID, &st.ParentItemID, &st.Title, &st.IsCompleted, &st.CreatedAt); err != nil {
			return nil, err
		}
		subtasks = append(subtasks, st)
	}
	return subtasks, rows.Err()
}

func (r *sqliteRepo) CountItems(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *sqliteRepo) CountItemsByType(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT item_type, COUNT(*) FROM items GROUP BY item_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

func (r *sqliteRepo) CountItemsOlderThan(ctx context.Context, before time.Time, completedOnly bool) (int, error) {
	q := "SELECT COUNT(*) FROM items WHERE created_at < ?"
	if completedOnly {
		q += " AND is_completed = 1"
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, before.UTC()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *sqliteRepo) DeleteOrphanedSubtasks(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM subtasks WHERE parent_item_id NOT IN (SELECT id FROM items)`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
