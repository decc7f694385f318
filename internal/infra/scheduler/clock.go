package scheduler

import (
	"time"

	"reminder_bot/internal/domain/birthday"
	"reminder_bot/internal/domain/notification"
	"reminder_bot/internal/domain/reminder"
	"reminder_bot/internal/domain/user"
)

const (
	defaultDeliveryTimeout = 30 * time.Second
	defaultRetryDelay      = 30 * time.Second
	defaultSweepTimeout    = 10 * time.Minute
)

// Clock abstracts time so schedulers can be driven manually in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Renderer turns domain records into deliverable messages.
type Renderer interface {
	Reminder(r *reminder.Reminder, owner *user.User) notification.Message
	Birthday(b *birthday.Birthday, owner *user.User) notification.Message
	EarlyBirthday(b *birthday.Birthday, owner *user.User, target time.Time) notification.Message
}

type options struct {
	clock           Clock
	deliveryTimeout time.Duration
	retryDelay      time.Duration
	sweepTimeout    time.Duration
}

// Option configures TimerScheduler and SweepScheduler.
type Option func(*options)

func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDeliveryTimeout bounds a single Dispatcher.Deliver call.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.deliveryTimeout = d
		}
	}
}

// WithRetryDelay sets how long the timer waits before retrying after a
// persistence error while firing.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}

// WithSweepTimeout bounds one scheduled sweep tick.
func WithSweepTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sweepTimeout = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:           realClock{},
		deliveryTimeout: defaultDeliveryTimeout,
		retryDelay:      defaultRetryDelay,
		sweepTimeout:    defaultSweepTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
