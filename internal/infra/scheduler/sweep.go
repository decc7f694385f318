package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"reminder_bot/internal/domain/birthday"
	"reminder_bot/internal/domain/notification"
	"reminder_bot/internal/domain/user"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrSweepInProgress is returned by RunOnce while another tick is running.
var ErrSweepInProgress = errors.New("birthday sweep already running")

// SweepReport summarizes one sweep tick.
type SweepReport struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Offsets        int       `json:"offsets"`
	Delivered      int       `json:"delivered"`
	Failed         int       `json:"failed"`
	EarlyDelivered int       `json:"early_delivered"`
	EarlyFailed    int       `json:"early_failed"`
	Skipped        int       `json:"skipped"`
	Errors         int       `json:"errors"`
}

// SweepScheduler periodically evaluates regular and early birthday
// notifications for every timezone offset in use.
type SweepScheduler struct {
	birthdays  birthday.Repository
	users      user.Repository
	dispatcher notification.Dispatcher
	renderer   Renderer
	logger     *logrus.Entry
	cronSpec   string
	opts       options

	cronEngine *cron.Cron
	running    atomic.Bool
	startupRun sync.WaitGroup

	mu         sync.Mutex
	lastReport *SweepReport
}

func NewSweepScheduler(
	birthdays birthday.Repository,
	users user.Repository,
	dispatcher notification.Dispatcher,
	renderer Renderer,
	logger *logrus.Entry,
	cronSpec string, // e.g., "@every 1h" or "5 * * * *"
	opts ...Option,
) *SweepScheduler {
	return &SweepScheduler{
		birthdays:  birthdays,
		users:      users,
		dispatcher: dispatcher,
		renderer:   renderer,
		logger:     logger.WithField("component", "sweep_scheduler"),
		cronSpec:   cronSpec,
		opts:       buildOptions(opts),
	}
}

// Start registers the sweep job, starts cron and runs one sweep right away.
func (s *SweepScheduler) Start() error {
	s.logger.Info("Starting birthday sweep scheduler...")

	cronLogger := cron.PrintfLogger(s.logger)
	s.cronEngine = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if _, err := s.cronEngine.AddFunc(s.cronSpec, s.runScheduled); err != nil {
		return fmt.Errorf("could not add birthday sweep cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.startupRun.Add(1)
	go func() {
		defer s.startupRun.Done()
		cron.Recover(cronLogger)(cron.FuncJob(s.runScheduled)).Run()
	}()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Birthday sweep scheduler started.")
	return nil
}

// Stop halts cron and waits for any running tick, including the startup one.
func (s *SweepScheduler) Stop() {
	if s.cronEngine == nil {
		return
	}
	s.logger.Info("Stopping birthday sweep scheduler...")
	ctx := s.cronEngine.Stop() // Stops new runs, waits for the running one.
	<-ctx.Done()
	s.startupRun.Wait()
	s.logger.Info("Birthday sweep scheduler gracefully stopped.")
}

// LastReport returns the report of the latest finished sweep, or nil.
func (s *SweepScheduler) LastReport() *SweepReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return nil
	}
	r := *s.lastReport
	return &r
}

// Running reports whether a sweep tick is in progress.
func (s *SweepScheduler) Running() bool {
	return s.running.Load()
}

func (s *SweepScheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.sweepTimeout)
	defer cancel()

	report, err := s.RunOnce(ctx)
	if errors.Is(err, ErrSweepInProgress) {
		s.logger.Info("Previous birthday sweep still running, skipping tick")
		return
	}
	log := s.logger.WithFields(logrus.Fields{
		"sweep_run_id":    report.RunID,
		"offsets":         report.Offsets,
		"delivered":       report.Delivered,
		"failed":          report.Failed,
		"early_delivered": report.EarlyDelivered,
		"early_failed":    report.EarlyFailed,
		"errors":          report.Errors,
	})
	if err != nil {
		log.WithError(err).Error("Birthday sweep aborted")
		return
	}
	log.Info("Birthday sweep finished")
}

// RunOnce performs one sweep tick. Concurrent calls return ErrSweepInProgress.
func (s *SweepScheduler) RunOnce(ctx context.Context) (report SweepReport, err error) {
	if !s.running.CompareAndSwap(false, true) {
		return SweepReport{}, ErrSweepInProgress
	}
	defer s.running.Store(false)

	report = SweepReport{RunID: uuid.NewString(), StartedAt: s.opts.clock.Now().UTC()}
	log := s.logger.WithField("sweep_run_id", report.RunID)
	defer func() {
		report.FinishedAt = s.opts.clock.Now().UTC()
		s.mu.Lock()
		r := report
		s.lastReport = &r
		s.mu.Unlock()
	}()

	offsets, err := s.birthdays.ListDistinctTimezoneOffsets(ctx)
	if err != nil {
		report.Errors++
		return report, fmt.Errorf("failed to list timezone offsets: %w", err)
	}
	report.Offsets = len(offsets)

	owners := make(map[int64]*user.User)
	for _, tz := range offsets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		now := report.StartedAt.In(user.Zone(tz))
		tzLog := log.WithField("timezone", user.ZoneName(tz))
		s.regularPass(ctx, tzLog, tz, now, owners, &report)
		s.earlyPass(ctx, tzLog, tz, now, owners, &report)
	}
	return report, nil
}

// dueDates lists the stored (month, day) pairs that can fire on now's date.
// Feb 29 birthdays are also looked up on Feb 28 and Mar 1 of common years;
// their leap policy decides in QualifiesOn.
func dueDates(now time.Time) [][2]int {
	month, day := int(now.Month()), now.Day()
	dates := [][2]int{{month, day}}
	if !birthday.IsLeapYear(now.Year()) && ((month == 2 && day == 28) || (month == 3 && day == 1)) {
		dates = append(dates, [2]int{2, 29})
	}
	return dates
}

func (s *SweepScheduler) regularPass(ctx context.Context, log *logrus.Entry, tz int, now time.Time, owners map[int64]*user.User, report *SweepReport) {
	year := now.Year()
	for _, date := range dueDates(now) {
		due, err := s.birthdays.ListDueToday(ctx, date[0], date[1], tz, year)
		if err != nil {
			report.Errors++
			log.WithError(err).Error("Failed to list birthdays due today")
			continue
		}

		for _, b := range due {
			bLog := log.WithFields(logrus.Fields{"birthday_id": b.ID, "user_id": b.UserID})
			if err := birthday.ValidateDate(b.Month, b.Day); err != nil {
				report.Skipped++
				bLog.WithError(err).Warn("Skipping birthday with invalid date")
				continue
			}
			if !b.QualifiesOn(now) {
				report.Skipped++
				continue
			}

			owner := s.owner(ctx, owners, b.UserID, tz)
			if !s.deliver(ctx, b.UserID, s.renderer.Birthday(b, owner)) {
				report.Failed++
				bLog.Warn("Birthday notification failed, will retry next tick")
				continue
			}
			report.Delivered++
			if err := s.birthdays.UpdateNotifyYear(ctx, b.ID, year); err != nil {
				report.Errors++
				bLog.WithError(err).Error("Birthday delivered but notify year not stamped")
				continue
			}
			bLog.Info("Birthday notification delivered")
		}
	}
}

func (s *SweepScheduler) earlyPass(ctx context.Context, log *logrus.Entry, tz int, now time.Time, owners map[int64]*user.User, report *SweepReport) {
	year := now.Year()
	candidates, err := s.birthdays.ListWithEarlyNotify(ctx, tz, year)
	if err != nil {
		report.Errors++
		log.WithError(err).Error("Failed to list birthdays with early notification")
		return
	}

	for _, b := range candidates {
		bLog := log.WithFields(logrus.Fields{"birthday_id": b.ID, "user_id": b.UserID})
		target, early, err := b.EarlyNoticeDate(tz, now)
		if err != nil {
			report.Skipped++
			bLog.WithError(err).Warn("Skipping birthday early notification")
			continue
		}
		if !birthday.SameDate(now, early) {
			continue
		}

		owner := s.owner(ctx, owners, b.UserID, tz)
		if !s.deliver(ctx, b.UserID, s.renderer.EarlyBirthday(b, owner, target)) {
			report.EarlyFailed++
			bLog.Warn("Early birthday notification failed, will retry next tick")
			continue
		}
		report.EarlyDelivered++
		if err := s.birthdays.UpdateEarlyNotifyYear(ctx, b.ID, year); err != nil {
			report.Errors++
			bLog.WithError(err).Error("Early notification delivered but year not stamped")
			continue
		}
		bLog.Info("Early birthday notification delivered")
	}
}

func (s *SweepScheduler) deliver(ctx context.Context, userID int64, msg notification.Message) bool {
	ctx, cancel := context.WithTimeout(ctx, s.opts.deliveryTimeout)
	defer cancel()
	return s.dispatcher.Deliver(ctx, userID, msg)
}

// owner loads the birthday owner once per tick.
func (s *SweepScheduler) owner(ctx context.Context, cache map[int64]*user.User, id int64, tz int) *user.User {
	if u, ok := cache[id]; ok {
		return u
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", id).Warn("Failed to load birthday owner, rendering with defaults")
		u = &user.User{ID: id, TimezoneOffset: tz}
	}
	cache[id] = u
	return u
}
