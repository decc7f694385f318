package birthday

import (
	"context"
)

// Repository defines operations for Birthday persistence, including the
// queries used by the periodic sweep.
type Repository interface {
	Create(ctx context.Context, b *Birthday) error // ErrDuplicateBirthday on (owner, subject) clash
	GetBySubject(ctx context.Context, userID int64, subject Subject) (*Birthday, error)
	ListByUser(ctx context.Context, userID int64) ([]*Birthday, error)
	Delete(ctx context.Context, id int64) error

	// Partial updates; each one writes only the named columns.
	UpdateDate(ctx context.Context, id int64, month, day int) error
	UpdateLeapPolicy(ctx context.Context, id int64, policy LeapPolicy) error
	UpdateEarlyNotifyDays(ctx context.Context, id int64, days int) error // 0 disables
	UpdateNotifyYear(ctx context.Context, id int64, year int) error
	UpdateEarlyNotifyYear(ctx context.Context, id int64, year int) error

	// Sweep queries.
	ListDistinctTimezoneOffsets(ctx context.Context) ([]int, error)
	ListDueToday(ctx context.Context, month, day, offsetHours, yearFloor int) ([]*Birthday, error)
	ListWithEarlyNotify(ctx context.Context, offsetHours, yearFloor int) ([]*Birthday, error)
}
