package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reminder_bot/internal/domain/user"
)

type SQLUserRepository struct {
	db *DB
}

func NewSQLUserRepository(db *DB) *SQLUserRepository {
	return &SQLUserRepository{db: db}
}

func (r *SQLUserRepository) GetOrCreate(ctx context.Context, id int64) (*user.User, error) {
	now := dbTime(time.Now())
	query := `INSERT INTO users (id, timezone_offset, created_at, updated_at)
              VALUES ($1, 0, $2, $2)
              ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *SQLUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT id, timezone_offset, language, created_at, updated_at
              FROM users WHERE id = $1`
	u := &user.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.TimezoneOffset, &u.Language, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by ID: %w", err)
	}
	return u, nil
}

func (r *SQLUserRepository) UpdateTimezone(ctx context.Context, id int64, offsetHours int) error {
	if err := user.ValidateOffset(offsetHours); err != nil {
		return err
	}
	query := `UPDATE users SET timezone_offset = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, offsetHours, dbTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("error updating user timezone: %w", err)
	}
	return checkAffected(res, user.ErrUserNotFound)
}

func (r *SQLUserRepository) UpdateLanguage(ctx context.Context, id int64, language string) error {
	lang := sql.NullString{String: language, Valid: language != ""}
	query := `UPDATE users SET language = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, lang, dbTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("error updating user language: %w", err)
	}
	return checkAffected(res, user.ErrUserNotFound)
}
