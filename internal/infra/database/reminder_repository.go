package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reminder_bot/internal/domain/reminder"
)

type SQLReminderRepository struct {
	db *DB
}

func NewSQLReminderRepository(db *DB) *SQLReminderRepository {
	return &SQLReminderRepository{db: db}
}

const reminderColumns = `id, user_id, text, scheduled_at, created_at, source_ref, dropped`

func (r *SQLReminderRepository) Create(ctx context.Context, rem *reminder.Reminder) error {
	if rem.CreatedAt.IsZero() {
		rem.CreatedAt = time.Now()
	}
	rem.ScheduledAt = dbTime(rem.ScheduledAt)
	rem.CreatedAt = dbTime(rem.CreatedAt)

	query := `INSERT INTO reminders (user_id, text, scheduled_at, created_at, source_ref, dropped)
              VALUES ($1, $2, $3, $4, $5, FALSE)
              RETURNING id`
	err := r.db.QueryRowContext(ctx, query, rem.UserID, rem.Text, rem.ScheduledAt, rem.CreatedAt, rem.SourceRef).Scan(&rem.ID)
	if err != nil {
		return fmt.Errorf("error creating reminder: %w", err)
	}
	rem.Dropped = false
	return nil
}

func (r *SQLReminderRepository) GetByID(ctx context.Context, id int64) (*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`
	rem, err := scanReminder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reminder.ErrReminderNotFound
		}
		return nil, fmt.Errorf("error getting reminder by ID: %w", err)
	}
	return rem, nil
}

func (r *SQLReminderRepository) ListByUser(ctx context.Context, userID int64) ([]*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders
              WHERE user_id = $1 AND dropped = FALSE
              ORDER BY scheduled_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*reminder.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning reminder row: %w", err)
		}
		reminders = append(reminders, rem)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder rows: %w", err)
	}
	return reminders, nil
}

func (r *SQLReminderRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting reminder: %w", err)
	}
	return checkAffected(res, reminder.ErrReminderNotFound)
}

func (r *SQLReminderRepository) MarkDropped(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reminders SET dropped = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error dropping reminder: %w", err)
	}
	return checkAffected(res, reminder.ErrReminderNotFound)
}

func (r *SQLReminderRepository) GetEarliestPending(ctx context.Context) (*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders
              WHERE dropped = FALSE
              ORDER BY scheduled_at ASC, id ASC
              LIMIT 1`
	rem, err := scanReminder(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting earliest pending reminder: %w", err)
	}
	return rem, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*reminder.Reminder, error) {
	rem := &reminder.Reminder{}
	err := row.Scan(&rem.ID, &rem.UserID, &rem.Text, &rem.ScheduledAt, &rem.CreatedAt, &rem.SourceRef, &rem.Dropped)
	if err != nil {
		return nil, err
	}
	rem.ScheduledAt = rem.ScheduledAt.UTC()
	rem.CreatedAt = rem.CreatedAt.UTC()
	return rem, nil
}
