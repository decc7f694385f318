package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reminder_bot/internal/domain/notification"
	"reminder_bot/internal/domain/reminder"
	"reminder_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
)

// ErrSchedulerStopped is returned by Reschedule after Stop.
var ErrSchedulerStopped = errors.New("scheduler is stopped")

// State is the TimerScheduler lifecycle state.
type State string

const (
	StateIdle   State = "IDLE"
	StateArmed  State = "ARMED"
	StateFiring State = "FIRING"
)

// TimerStatus is a snapshot of the TimerScheduler.
type TimerStatus struct {
	State      State     `json:"state"`
	ReminderID int64     `json:"reminder_id,omitempty"`
	FireAt     time.Time `json:"fire_at"`
}

// TimerScheduler keeps at most one timer armed, always for the globally
// earliest pending reminder.
type TimerScheduler struct {
	reminders  reminder.Repository
	users      user.Repository
	dispatcher notification.Dispatcher
	renderer   Renderer
	logger     *logrus.Entry
	opts       options

	mu       sync.Mutex
	state    State
	gen      uint64 // bumped on every cancel/arm; stale timer callbacks compare against it
	timer    Timer
	targetID int64
	fireAt   time.Time
	stopped  bool
	firing   sync.WaitGroup
}

func NewTimerScheduler(
	reminders reminder.Repository,
	users user.Repository,
	dispatcher notification.Dispatcher,
	renderer Renderer,
	logger *logrus.Entry,
	opts ...Option,
) *TimerScheduler {
	return &TimerScheduler{
		reminders:  reminders,
		users:      users,
		dispatcher: dispatcher,
		renderer:   renderer,
		logger:     logger.WithField("component", "timer_scheduler"),
		opts:       buildOptions(opts),
		state:      StateIdle,
	}
}

// Start arms the timer for whatever is pending at boot.
func (s *TimerScheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting reminder timer...")
	return s.Reschedule(ctx)
}

// Reschedule cancels the outstanding timer and arms a new one for the earliest
// pending reminder. While a reminder is firing the call is a no-op: the firing
// sequence re-reads the store when it finishes.
func (s *TimerScheduler) Reschedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.state == StateFiring {
		s.logger.Debug("Reschedule requested while firing, deferring to the firing sequence")
		return nil
	}
	return s.rescheduleLocked(ctx, 0)
}

// Cancel disarms the outstanding timer, if any. A reminder that is already
// firing still completes and re-arms; use Stop to prevent that.
func (s *TimerScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Stop cancels the timer and waits for an in-flight delivery to finish.
// The scheduler cannot be restarted.
func (s *TimerScheduler) Stop() {
	s.logger.Info("Stopping reminder timer...")
	s.mu.Lock()
	s.stopped = true
	s.cancelLocked()
	s.mu.Unlock()

	s.firing.Wait()
	s.logger.Info("Reminder timer stopped.")
}

func (s *TimerScheduler) Status() TimerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TimerStatus{State: s.state, ReminderID: s.targetID, FireAt: s.fireAt}
}

func (s *TimerScheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	if s.state == StateArmed {
		s.state = StateIdle
		s.targetID = 0
		s.fireAt = time.Time{}
	}
}

// rescheduleLocked must be called with s.mu held and s.state != StateFiring.
func (s *TimerScheduler) rescheduleLocked(ctx context.Context, minDelay time.Duration) error {
	s.cancelLocked()

	next, err := s.reminders.GetEarliestPending(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load earliest pending reminder, timer left idle")
		return fmt.Errorf("failed to load earliest pending reminder: %w", err)
	}
	if next == nil {
		s.logger.Debug("No pending reminders, timer idle")
		return nil
	}

	now := s.opts.clock.Now()
	delay := next.ScheduledAt.Sub(now)
	if delay < minDelay {
		delay = minDelay
	}
	if delay < 0 {
		delay = 0
	}

	s.gen++
	gen, id := s.gen, next.ID
	s.timer = s.opts.clock.AfterFunc(delay, func() { s.fire(gen, id) })
	s.state = StateArmed
	s.targetID = id
	s.fireAt = now.Add(delay)

	s.logger.WithFields(logrus.Fields{
		"reminder_id": id,
		"fire_at":     s.fireAt.UTC().Format(time.RFC3339),
	}).Debug("Timer armed")
	return nil
}

func (s *TimerScheduler) fire(gen uint64, id int64) {
	s.mu.Lock()
	if s.stopped || s.state != StateArmed || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.state = StateFiring
	s.timer = nil
	s.firing.Add(1)
	s.mu.Unlock()
	defer s.firing.Done()

	minDelay := s.deliver(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.targetID = 0
	s.fireAt = time.Time{}
	if s.stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.deliveryTimeout)
	defer cancel()
	_ = s.rescheduleLocked(ctx, minDelay) // logged inside
}

// deliver sends one reminder and removes it from the pending set. It returns
// the minimum delay before the next timer may fire, which is non-zero only
// after a persistence error.
func (s *TimerScheduler) deliver(id int64) time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.deliveryTimeout)
	defer cancel()
	log := s.logger.WithField("reminder_id", id)

	rem, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, reminder.ErrReminderNotFound) {
			log.Info("Reminder removed before it fired, skipping")
			return 0
		}
		log.WithError(err).Error("Failed to load reminder for delivery")
		return s.opts.retryDelay
	}
	if !rem.IsPending() {
		log.Info("Reminder already dropped, skipping")
		return 0
	}
	log = log.WithField("user_id", rem.UserID)

	owner, err := s.users.GetByID(ctx, rem.UserID)
	if err != nil {
		log.WithError(err).Warn("Failed to load reminder owner, rendering with defaults")
		owner = &user.User{ID: rem.UserID}
	}

	if s.dispatcher.Deliver(ctx, rem.UserID, s.renderer.Reminder(rem, owner)) {
		if err := s.reminders.Delete(ctx, id); err != nil && !errors.Is(err, reminder.ErrReminderNotFound) {
			log.WithError(err).Error("Reminder delivered but could not be deleted")
			return s.opts.retryDelay
		}
		log.Info("Reminder delivered")
		return 0
	}

	log.Warn("Reminder delivery failed, dropping it")
	if err := s.reminders.MarkDropped(ctx, id); err != nil && !errors.Is(err, reminder.ErrReminderNotFound) {
		log.WithError(err).Error("Failed to drop undeliverable reminder")
		return s.opts.retryDelay
	}
	return 0
}
