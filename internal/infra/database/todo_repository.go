package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reminder_bot/internal/domain/todo"
)

type SQLTodoRepository struct {
	db *DB
}

func NewSQLTodoRepository(db *DB) *SQLTodoRepository {
	return &SQLTodoRepository{db: db}
}

const taskColumns = `id, user_id, text, done, created_at`

func (r *SQLTodoRepository) Create(ctx context.Context, t *todo.Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = dbTime(t.CreatedAt)

	query := `INSERT INTO todo_tasks (user_id, text, done, created_at)
              VALUES ($1, $2, FALSE, $3)
              RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, t.UserID, t.Text, t.CreatedAt).Scan(&t.ID); err != nil {
		return fmt.Errorf("error creating task: %w", err)
	}
	t.Done = false
	return nil
}

func (r *SQLTodoRepository) GetByID(ctx context.Context, id int64) (*todo.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM todo_tasks WHERE id = $1`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, todo.ErrTaskNotFound
		}
		return nil, fmt.Errorf("error getting task by ID: %w", err)
	}
	return t, nil
}

func (r *SQLTodoRepository) ListByUser(ctx context.Context, userID int64, includeDone bool) ([]*todo.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM todo_tasks
              WHERE user_id = $1 AND (done = FALSE OR $2)
              ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, includeDone)
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*todo.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

func (r *SQLTodoRepository) MarkDone(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE todo_tasks SET done = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error marking task done: %w", err)
	}
	return checkAffected(res, todo.ErrTaskNotFound)
}

func (r *SQLTodoRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todo_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting task: %w", err)
	}
	return checkAffected(res, todo.ErrTaskNotFound)
}

func scanTask(row rowScanner) (*todo.Task, error) {
	t := &todo.Task{}
	if err := row.Scan(&t.ID, &t.UserID, &t.Text, &t.Done, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
