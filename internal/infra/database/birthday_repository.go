package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reminder_bot/internal/domain/birthday"
)

type SQLBirthdayRepository struct {
	db *DB
}

func NewSQLBirthdayRepository(db *DB) *SQLBirthdayRepository {
	return &SQLBirthdayRepository{db: db}
}

const birthdayColumns = `b.id, b.user_id, b.subject_user_id, b.subject_name, b.month, b.day, b.leap_policy,
       b.last_notified_year, b.early_notify_days, b.last_early_notified_year, b.created_at, b.updated_at`

// stampColumn restricts which year stamp updateStamp may write.
type stampColumn string

const (
	stampRegular stampColumn = "last_notified_year"
	stampEarly   stampColumn = "last_early_notified_year"
)

func (r *SQLBirthdayRepository) Create(ctx context.Context, b *birthday.Birthday) error {
	if err := b.Subject.Validate(); err != nil {
		return err
	}
	now := dbTime(time.Now())
	b.CreatedAt, b.UpdatedAt = now, now

	query := `INSERT INTO birthdays (user_id, subject_user_id, subject_name, month, day, leap_policy,
                  last_notified_year, early_notify_days, last_early_notified_year, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
              RETURNING id`
	subjectUser, subjectName := subjectArgs(b.Subject)
	err := r.db.QueryRowContext(ctx, query,
		b.UserID, subjectUser, subjectName, b.Month, b.Day, string(b.LeapPolicy),
		b.LastNotifiedYear, nullDays(b.EarlyNotifyDays), b.LastEarlyNotifiedYear, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return birthday.ErrDuplicateBirthday
		}
		return fmt.Errorf("error creating birthday: %w", err)
	}
	return nil
}

func (r *SQLBirthdayRepository) GetBySubject(ctx context.Context, userID int64, subject birthday.Subject) (*birthday.Birthday, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays b
              WHERE b.user_id = $1
                AND COALESCE(b.subject_user_id, 0) = $2
                AND COALESCE(b.subject_name, '') = $3`
	b, err := scanBirthday(r.db.QueryRowContext(ctx, query, userID, subject.UserID, subject.Name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, birthday.ErrBirthdayNotFound
		}
		return nil, fmt.Errorf("error getting birthday by subject: %w", err)
	}
	return b, nil
}

func (r *SQLBirthdayRepository) ListByUser(ctx context.Context, userID int64) ([]*birthday.Birthday, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays b
              WHERE b.user_id = $1
              ORDER BY b.month ASC, b.day ASC, b.id ASC`
	return r.list(ctx, query, userID)
}

func (r *SQLBirthdayRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM birthdays WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting birthday: %w", err)
	}
	return checkAffected(res, birthday.ErrBirthdayNotFound)
}

func (r *SQLBirthdayRepository) UpdateDate(ctx context.Context, id int64, month, day int) error {
	if err := birthday.ValidateDate(month, day); err != nil {
		return err
	}
	query := `UPDATE birthdays SET month = $1, day = $2, updated_at = $3 WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, month, day, dbTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("error updating birthday date: %w", err)
	}
	return checkAffected(res, birthday.ErrBirthdayNotFound)
}

func (r *SQLBirthdayRepository) UpdateLeapPolicy(ctx context.Context, id int64, policy birthday.LeapPolicy) error {
	if !policy.Valid() {
		return birthday.ErrInvalidLeapPolicy
	}
	query := `UPDATE birthdays SET leap_policy = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, string(policy), dbTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("error updating birthday leap policy: %w", err)
	}
	return checkAffected(res, birthday.ErrBirthdayNotFound)
}

func (r *SQLBirthdayRepository) UpdateEarlyNotifyDays(ctx context.Context, id int64, days int) error {
	if days != 0 {
		if err := birthday.ValidateEarlyNotifyDays(days); err != nil {
			return err
		}
	}
	query := `UPDATE birthdays SET early_notify_days = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, nullDays(days), dbTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("error updating birthday early notification: %w", err)
	}
	return checkAffected(res, birthday.ErrBirthdayNotFound)
}

func (r *SQLBirthdayRepository) UpdateNotifyYear(ctx context.Context, id int64, year int) error {
	return r.updateStamp(ctx, id, stampRegular, year)
}

func (r *SQLBirthdayRepository) UpdateEarlyNotifyYear(ctx context.Context, id int64, year int) error {
	return r.updateStamp(ctx, id, stampEarly, year)
}

// updateStamp writes only the given stamp column and never moves it backwards.
// updated_at is left alone so stamping does not look like a user edit.
func (r *SQLBirthdayRepository) updateStamp(ctx context.Context, id int64, column stampColumn, year int) error {
	switch column {
	case stampRegular, stampEarly:
	default:
		return fmt.Errorf("unknown stamp column %q", column)
	}
	query := fmt.Sprintf(`UPDATE birthdays SET %[1]s = $1 WHERE id = $2 AND %[1]s < $1`, column)
	if _, err := r.db.ExecContext(ctx, query, year, id); err != nil {
		return fmt.Errorf("error updating birthday %s: %w", column, err)
	}
	return nil
}

func (r *SQLBirthdayRepository) ListDistinctTimezoneOffsets(ctx context.Context) ([]int, error) {
	query := `SELECT DISTINCT u.timezone_offset
              FROM users u
              JOIN birthdays b ON b.user_id = u.id
              ORDER BY u.timezone_offset`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing timezone offsets: %w", err)
	}
	defer rows.Close()

	var offsets []int
	for rows.Next() {
		var offset int
		if err := rows.Scan(&offset); err != nil {
			return nil, fmt.Errorf("error scanning timezone offset: %w", err)
		}
		offsets = append(offsets, offset)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timezone offsets: %w", err)
	}
	return offsets, nil
}

func (r *SQLBirthdayRepository) ListDueToday(ctx context.Context, month, day, offsetHours, yearFloor int) ([]*birthday.Birthday, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays b
              JOIN users u ON u.id = b.user_id
              WHERE u.timezone_offset = $1
                AND b.month = $2 AND b.day = $3
                AND b.last_notified_year < $4
              ORDER BY b.id`
	return r.list(ctx, query, offsetHours, month, day, yearFloor)
}

func (r *SQLBirthdayRepository) ListWithEarlyNotify(ctx context.Context, offsetHours, yearFloor int) ([]*birthday.Birthday, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays b
              JOIN users u ON u.id = b.user_id
              WHERE u.timezone_offset = $1
                AND b.early_notify_days IS NOT NULL
                AND b.last_early_notified_year < $2
              ORDER BY b.id`
	return r.list(ctx, query, offsetHours, yearFloor)
}

func (r *SQLBirthdayRepository) list(ctx context.Context, query string, args ...any) ([]*birthday.Birthday, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing birthdays: %w", err)
	}
	defer rows.Close()

	var birthdays []*birthday.Birthday
	for rows.Next() {
		b, err := scanBirthday(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning birthday row: %w", err)
		}
		birthdays = append(birthdays, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating birthday rows: %w", err)
	}
	return birthdays, nil
}

func scanBirthday(row rowScanner) (*birthday.Birthday, error) {
	var (
		b           birthday.Birthday
		subjectUser sql.NullInt64
		subjectName sql.NullString
		policy      string
		earlyDays   sql.NullInt64
	)
	err := row.Scan(&b.ID, &b.UserID, &subjectUser, &subjectName, &b.Month, &b.Day, &policy,
		&b.LastNotifiedYear, &earlyDays, &b.LastEarlyNotifiedYear, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Subject = birthday.Subject{UserID: subjectUser.Int64, Name: subjectName.String}
	b.LeapPolicy = birthday.LeapPolicy(policy)
	b.EarlyNotifyDays = int(earlyDays.Int64)
	return &b, nil
}

func subjectArgs(s birthday.Subject) (sql.NullInt64, sql.NullString) {
	return sql.NullInt64{Int64: s.UserID, Valid: s.UserID != 0},
		sql.NullString{String: s.Name, Valid: s.Name != ""}
}

func nullDays(days int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(days), Valid: days > 0}
}
