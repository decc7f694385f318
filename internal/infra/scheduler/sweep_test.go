package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reminder_bot/internal/domain/birthday"
	"reminder_bot/internal/domain/notification"
)

type sweepFixture struct {
	clock      *fakeClock
	users      *memUserRepo
	birthdays  *memBirthdayRepo
	dispatcher *recordingDispatcher
	sweep      *SweepScheduler
}

func newSweepFixture(t *testing.T, now time.Time) *sweepFixture {
	t.Helper()
	f := &sweepFixture{
		clock:      newFakeClock(now),
		users:      newMemUserRepo(),
		dispatcher: newRecordingDispatcher(),
	}
	f.birthdays = newMemBirthdayRepo(f.users)
	f.sweep = NewSweepScheduler(f.birthdays, f.users, f.dispatcher, stubRenderer{}, testLogger(), "@every 1h",
		WithClock(f.clock))
	return f
}

func (f *sweepFixture) run(t *testing.T) SweepReport {
	t.Helper()
	report, err := f.sweep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	return report
}

func TestSweepLeapDayOnMar1(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, time.Date(2027, 3, 1, 9, 0, 0, 0, time.UTC))
	f.users.put(1, 0)
	b := f.birthdays.add(birthday.Birthday{
		UserID: 1, Subject: birthday.NameSubject("Leapling"), Month: 2, Day: 29,
		LeapPolicy: birthday.LeapPolicyMar1, LastNotifiedYear: 2026,
	})

	report := f.run(t)
	if report.Delivered != 1 {
		t.Fatalf("expected one delivery, got %+v", report)
	}
	if got := f.birthdays.get(b.ID).LastNotifiedYear; got != 2027 {
		t.Fatalf("stamp = %d, want 2027", got)
	}
	if msgs := f.dispatcher.messages(); msgs[0].Msg.Kind != notification.KindBirthday {
		t.Fatalf("unexpected message kind: %+v", msgs[0])
	}
}

func TestSweepLeapPolicies(t *testing.T) {
	t.Parallel()

	feb28 := time.Date(2027, 2, 28, 9, 0, 0, 0, time.UTC)
	mar1 := time.Date(2027, 3, 1, 9, 0, 0, 0, time.UTC)
	leapDay := time.Date(2028, 2, 29, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		policy birthday.LeapPolicy
		now    time.Time
		want   int
	}{
		{"mar1 policy skips feb28", birthday.LeapPolicyMar1, feb28, 0},
		{"feb28 policy on feb28", birthday.LeapPolicyFeb28, feb28, 1},
		{"feb28 policy skips mar1", birthday.LeapPolicyFeb28, mar1, 0},
		{"unset policy never fires in common year", birthday.LeapPolicyUnset, mar1, 0},
		{"unset policy on feb28", birthday.LeapPolicyUnset, feb28, 0},
		{"suppressed policy", birthday.LeapPolicySuppressed, feb28, 0},
		{"any policy on a real leap day", birthday.LeapPolicyUnset, leapDay, 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newSweepFixture(t, tt.now)
			f.users.put(1, 0)
			f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("L"), Month: 2, Day: 29, LeapPolicy: tt.policy})

			if report := f.run(t); report.Delivered != tt.want {
				t.Fatalf("delivered %d, want %d (%+v)", report.Delivered, tt.want, report)
			}
		})
	}
}

func TestSweepIsIdempotentWithinYear(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, time.Date(2030, 5, 10, 8, 0, 0, 0, time.UTC))
	f.users.put(1, 0)
	f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("Ann"), Month: 5, Day: 10})

	if r := f.run(t); r.Delivered != 1 {
		t.Fatalf("first run delivered %d", r.Delivered)
	}
	f.clock.Set(time.Date(2030, 5, 10, 20, 0, 0, 0, time.UTC))
	if r := f.run(t); r.Delivered != 0 {
		t.Fatalf("second run re-delivered: %+v", r)
	}
	if n := len(f.dispatcher.messages()); n != 1 {
		t.Fatalf("expected one message total, got %d", n)
	}

	f.clock.Set(time.Date(2031, 5, 10, 8, 0, 0, 0, time.UTC))
	if r := f.run(t); r.Delivered != 1 {
		t.Fatalf("next year should deliver again: %+v", r)
	}
}

func TestSweepFailureRetriesNextTick(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, time.Date(2030, 5, 10, 8, 0, 0, 0, time.UTC))
	f.users.put(1, 0)
	b := f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("Ann"), Month: 5, Day: 10})
	f.dispatcher.setFail(1, true)

	if r := f.run(t); r.Failed != 1 || r.Delivered != 0 {
		t.Fatalf("expected one failure, got %+v", r)
	}
	if got := f.birthdays.get(b.ID).LastNotifiedYear; got != 0 {
		t.Fatalf("stamp advanced on failure: %d", got)
	}

	f.dispatcher.setFail(1, false)
	f.clock.Set(time.Date(2030, 5, 10, 9, 0, 0, 0, time.UTC))
	if r := f.run(t); r.Delivered != 1 {
		t.Fatalf("retry did not deliver: %+v", r)
	}
}

func TestSweepUsesOwnerOffset(t *testing.T) {
	t.Parallel()
	// 22:00 UTC on May 9 is already May 10 at UTC+3.
	f := newSweepFixture(t, time.Date(2030, 5, 9, 22, 0, 0, 0, time.UTC))
	f.users.put(1, 3)
	f.users.put(2, 0)
	east := f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("East"), Month: 5, Day: 10})
	f.birthdays.add(birthday.Birthday{UserID: 2, Subject: birthday.NameSubject("West"), Month: 5, Day: 10})

	report := f.run(t)
	if report.Offsets != 2 || report.Delivered != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if msgs := f.dispatcher.messages(); msgs[0].UserID != 1 {
		t.Fatalf("expected delivery to the UTC+3 owner, got %+v", msgs)
	}
	if got := f.birthdays.get(east.ID).LastNotifiedYear; got != 2030 {
		t.Fatalf("stamp = %d, want 2030", got)
	}
}

func TestSweepEarlyNoticeCrossesYear(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, time.Date(2029, 12, 29, 10, 0, 0, 0, time.UTC))
	f.users.put(1, 0)
	b := f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("Jan"), Month: 1, Day: 3, EarlyNotifyDays: 5})

	report := f.run(t)
	if report.EarlyDelivered != 1 {
		t.Fatalf("expected early notice, got %+v", report)
	}
	msgs := f.dispatcher.messages()
	if msgs[0].Msg.Kind != notification.KindBirthdayEarly || msgs[0].Msg.Body != "Jan on 2030-01-03" {
		t.Fatalf("unexpected early message: %+v", msgs[0])
	}
	if got := f.birthdays.get(b.ID).LastEarlyNotifiedYear; got != 2029 {
		t.Fatalf("early stamp = %d, want 2029", got)
	}

	if r := f.run(t); r.EarlyDelivered != 0 {
		t.Fatalf("early notice repeated: %+v", r)
	}

	f.clock.Set(time.Date(2029, 12, 30, 10, 0, 0, 0, time.UTC))
	f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("Other"), Month: 1, Day: 10, EarlyNotifyDays: 5})
	if r := f.run(t); r.EarlyDelivered != 0 {
		t.Fatalf("early notice fired on the wrong day: %+v", r)
	}
}

func TestSweepSkipsInvalidDates(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, time.Date(2030, 4, 26, 10, 0, 0, 0, time.UTC))
	f.users.put(1, 0)
	f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("Bad"), Month: 4, Day: 31, EarlyNotifyDays: 5})
	f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("Good"), Month: 5, Day: 1, EarlyNotifyDays: 5})

	report := f.run(t)
	if report.Skipped != 1 || report.EarlyDelivered != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestSweepSingleFlight(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, time.Date(2030, 5, 10, 8, 0, 0, 0, time.UTC))
	f.users.put(1, 0)
	f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("Ann"), Month: 5, Day: 10})

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.dispatcher.hook = func(int64, notification.Message) {
		once.Do(func() { close(entered) })
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.sweep.RunOnce(context.Background())
		done <- err
	}()

	<-entered
	if !f.sweep.Running() {
		t.Fatalf("expected sweep to report running")
	}
	if _, err := f.sweep.RunOnce(context.Background()); !errors.Is(err, ErrSweepInProgress) {
		t.Fatalf("expected ErrSweepInProgress, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}

	last := f.sweep.LastReport()
	if last == nil || last.Delivered != 1 || last.RunID == "" {
		t.Fatalf("unexpected last report: %+v", last)
	}
}

func TestRunOnceReturnsFinishTime(t *testing.T) {
	t.Parallel()
	now := time.Date(2027, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newSweepFixture(t, now)
	f.users.put(1, 0)
	f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("Ann"), Month: 3, Day: 1})

	report := f.run(t)
	if !report.FinishedAt.Equal(now) {
		t.Fatalf("returned FinishedAt = %v, want %v", report.FinishedAt, now)
	}
	if last := f.sweep.LastReport(); last == nil || !last.FinishedAt.Equal(report.FinishedAt) {
		t.Fatalf("last report disagrees with returned report: %+v", last)
	}
}

func TestSweepStopWaitsForStartupRun(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, time.Date(2030, 5, 10, 8, 0, 0, 0, time.UTC))
	f.users.put(1, 0)
	f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("Ann"), Month: 5, Day: 10})

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.dispatcher.hook = func(int64, notification.Message) {
		once.Do(func() { close(entered) })
		<-release
	}

	if err := f.sweep.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered

	stopped := make(chan struct{})
	go func() {
		f.sweep.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatalf("Stop returned while the startup sweep was still delivering")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatalf("Stop did not return after the startup sweep finished")
	}
	if last := f.sweep.LastReport(); last == nil || last.Delivered != 1 {
		t.Fatalf("unexpected last report: %+v", last)
	}
}

func TestSweepStartupRunRecoversPanic(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, time.Date(2030, 5, 10, 8, 0, 0, 0, time.UTC))
	f.users.put(1, 0)
	f.birthdays.add(birthday.Birthday{UserID: 1, Subject: birthday.NameSubject("Ann"), Month: 5, Day: 10})
	f.dispatcher.hook = func(int64, notification.Message) { panic("dispatcher exploded") }

	if err := f.sweep.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.sweep.Stop()

	if f.sweep.Running() {
		t.Fatalf("sweep should not be marked running after a recovered panic")
	}
	if last := f.sweep.LastReport(); last == nil || last.FinishedAt.IsZero() {
		t.Fatalf("expected a recorded report after the panic, got %+v", last)
	}
}
