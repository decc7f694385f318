package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reminder_bot/internal/domain/note"
)

type SQLNoteRepository struct {
	db *DB
}

func NewSQLNoteRepository(db *DB) *SQLNoteRepository {
	return &SQLNoteRepository{db: db}
}

const noteColumns = `id, user_id, title, content, created_at`

func (r *SQLNoteRepository) Create(ctx context.Context, n *note.Note) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.CreatedAt = dbTime(n.CreatedAt)

	query := `INSERT INTO notes (user_id, title, content, created_at)
              VALUES ($1, $2, $3, $4)
              RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, n.UserID, n.Title, n.Content, n.CreatedAt).Scan(&n.ID); err != nil {
		return fmt.Errorf("error creating note: %w", err)
	}
	return nil
}

func (r *SQLNoteRepository) GetByID(ctx context.Context, id int64) (*note.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1`
	n, err := scanNote(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, note.ErrNoteNotFound
		}
		return nil, fmt.Errorf("error getting note by ID: %w", err)
	}
	return n, nil
}

func (r *SQLNoteRepository) ListByUser(ctx context.Context, userID int64) ([]*note.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes
              WHERE user_id = $1
              ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing notes: %w", err)
	}
	defer rows.Close()

	var notes []*note.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning note row: %w", err)
		}
		notes = append(notes, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating note rows: %w", err)
	}
	return notes, nil
}

func (r *SQLNoteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting note: %w", err)
	}
	return checkAffected(res, note.ErrNoteNotFound)
}

func scanNote(row rowScanner) (*note.Note, error) {
	n := &note.Note{}
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}
