package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"solstice/internal/model"
)

// timeLayout is RFC 3339 with a fixed nine-digit fraction, so that text
// ordering of stored timestamps matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const taskColumns = "id, title, completed, created_at, updated_at"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// now returns the store clock in UTC without a monotonic reading, so values
// compare equal to what is read back from the database.
func (s *TaskStore) nowUTC() time.Time {
	return s.now().UTC().Round(0)
}

func (s *TaskStore) Create(ctx context.Context, title string) (model.Task, error) {
	now := s.nowUTC()
	t := model.Task{
		ID:        uuid.New(),
		Title:     title,
		Completed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q := s.dialect.rebind(`INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, 0, ?, ?)`)
	ts := formatTime(now)
	if _, err := s.db.ExecContext(ctx, q, t.ID.String(), t.Title, ts, ts); err != nil {
		return model.Task{}, model.Fault("create", err)
	}
	return t, nil
}

func (s *TaskStore) List(ctx context.Context) ([]model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, model.Fault("list", err)
	}
	defer rows.Close()

	out := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, model.Fault("list", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Fault("list", err)
	}
	return out, nil
}

func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (model.Task, error) {
	q := s.dialect.rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)
	t, err := scanTask(s.db.QueryRowContext(ctx, q, id.String()).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, model.ErrNotFound
		}
		return model.Task{}, model.Fault("get", err)
	}
	return t, nil
}

// Patch merges the supplied fields and refreshes updated_at in one statement.
// updated_at never moves backwards, even if the clock does.
func (s *TaskStore) Patch(ctx context.Context, id uuid.UUID, p model.TaskPatch) (model.Task, error) {
	var title, completed any
	if p.Title != nil {
		title = *p.Title
	}
	if p.Completed != nil {
		completed = boolToInt(*p.Completed)
	}
	ts := formatTime(s.nowUTC())

	q := s.dialect.rebind(`
UPDATE tasks SET
	title      = COALESCE(?, title),
	completed  = COALESCE(?, completed),
	updated_at = CASE WHEN updated_at > ? THEN updated_at ELSE ? END
WHERE id = ?
RETURNING ` + taskColumns)

	t, err := scanTask(s.db.QueryRowContext(ctx, q, title, completed, ts, ts, id.String()).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, model.ErrNotFound
		}
		return model.Task{}, model.Fault("patch", err)
	}
	return t, nil
}

// Delete removes the task. Absence is detected from the affected row count.
func (s *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	q := s.dialect.rebind(`DELETE FROM tasks WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, id.String())
	if err != nil {
		return model.Fault("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Fault("delete", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanTask(scan func(dest ...any) error) (model.Task, error) {
	var (
		t                    model.Task
		id                   string
		completed            int64
		createdAt, updatedAt string
	)
	if err := scan(&id, &t.Title, &completed, &createdAt, &updatedAt); err != nil {
		return model.Task{}, err
	}

	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return model.Task{}, fmt.Errorf("bad id %q: %w", id, err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Task{}, fmt.Errorf("bad created_at for %s: %w", id, err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Task{}, fmt.Errorf("bad updated_at for %s: %w", id, err)
	}
	t.Completed = completed != 0
	return t, nil
}
