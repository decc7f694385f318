package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"reminder_bot/internal/domain/notification"
)

var epoch = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

type timerFixture struct {
	clock      *fakeClock
	reminders  *memReminderRepo
	users      *memUserRepo
	dispatcher *recordingDispatcher
	sched      *TimerScheduler
}

func newTimerFixture(t *testing.T) *timerFixture {
	t.Helper()
	f := &timerFixture{
		clock:      newFakeClock(epoch),
		reminders:  newMemReminderRepo(),
		users:      newMemUserRepo(),
		dispatcher: newRecordingDispatcher(),
	}
	f.users.put(1, 0)
	f.users.put(2, 3)
	f.sched = NewTimerScheduler(f.reminders, f.users, f.dispatcher, stubRenderer{}, testLogger(),
		WithClock(f.clock), WithRetryDelay(time.Minute))
	t.Cleanup(f.sched.Stop)
	return f
}

func (f *timerFixture) reschedule(t *testing.T) {
	t.Helper()
	if err := f.sched.Reschedule(context.Background()); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
}

func TestRescheduleTargetsEarliest(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)

	a := f.reminders.add(1, "a", epoch.Add(10*time.Minute))
	f.reschedule(t)
	if st := f.sched.Status(); st.State != StateArmed || st.ReminderID != a.ID {
		t.Fatalf("expected armed for A, got %+v", st)
	}

	b := f.reminders.add(1, "b", epoch.Add(5*time.Minute))
	f.reschedule(t)
	st := f.sched.Status()
	if st.ReminderID != b.ID || !st.FireAt.Equal(epoch.Add(5*time.Minute)) {
		t.Fatalf("expected armed for B at +5m, got %+v", st)
	}
	if n := f.clock.Active(); n != 1 {
		t.Fatalf("expected exactly one active timer, got %d", n)
	}
}

func TestTieBreaksOnSmallerID(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)

	first := f.reminders.add(1, "first", epoch.Add(time.Minute))
	f.reminders.add(1, "second", epoch.Add(time.Minute))
	f.reschedule(t)
	if st := f.sched.Status(); st.ReminderID != first.ID {
		t.Fatalf("expected tie broken by smaller ID %d, got %+v", first.ID, st)
	}
}

func TestFireDeliversDeletesAndGoesIdle(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)

	rem := f.reminders.add(1, "stretch", epoch.Add(time.Second))
	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.clock.Advance(999 * time.Millisecond)
	if len(f.dispatcher.messages()) != 0 {
		t.Fatalf("fired too early")
	}

	f.clock.Advance(time.Millisecond)
	msgs := f.dispatcher.messages()
	if len(msgs) != 1 || msgs[0].UserID != 1 || msgs[0].Msg.Body != "stretch" || msgs[0].Msg.Kind != notification.KindReminder {
		t.Fatalf("unexpected deliveries: %+v", msgs)
	}
	if _, err := f.reminders.GetByID(context.Background(), rem.ID); err == nil {
		t.Fatalf("delivered reminder was not deleted")
	}
	if st := f.sched.Status(); st.State != StateIdle {
		t.Fatalf("expected idle, got %+v", st)
	}
	if n := f.clock.Active(); n != 0 {
		t.Fatalf("expected no active timers, got %d", n)
	}
}

func TestFiringOutlivesStartContext(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)

	f.reminders.add(1, "after shutdown signal", epoch.Add(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	if err := f.sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	f.clock.Advance(time.Minute)
	msgs := f.dispatcher.messages()
	if len(msgs) != 1 || msgs[0].Msg.Body != "after shutdown signal" {
		t.Fatalf("delivery should not use the Start context, got %+v", msgs)
	}
}

func TestFireRearmsForNextReminder(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)

	f.reminders.add(1, "one", epoch.Add(time.Minute))
	two := f.reminders.add(2, "two", epoch.Add(3*time.Minute))
	f.reschedule(t)

	f.clock.Advance(time.Minute)
	if st := f.sched.Status(); st.State != StateArmed || st.ReminderID != two.ID {
		t.Fatalf("expected re-armed for second reminder, got %+v", st)
	}

	f.clock.Advance(2 * time.Minute)
	msgs := f.dispatcher.messages()
	if len(msgs) != 2 || msgs[0].Msg.Body != "one" || msgs[1].Msg.Body != "two" {
		t.Fatalf("unexpected delivery order: %+v", msgs)
	}
}

func TestOverdueRemindersFireImmediately(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)

	f.reminders.add(1, "late", epoch.Add(-time.Hour))
	f.reminders.add(1, "later", epoch.Add(-time.Minute))
	f.reschedule(t)
	if st := f.sched.Status(); !st.FireAt.Equal(epoch) {
		t.Fatalf("overdue reminder should fire now, got %+v", st)
	}

	f.clock.Advance(0)
	if n := len(f.dispatcher.messages()); n != 2 {
		t.Fatalf("expected both overdue reminders delivered, got %d", n)
	}
}

func TestDeliveryFailureDropsWithoutRetry(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)
	f.dispatcher.setFail(1, true)

	bad := f.reminders.add(1, "unreachable", epoch.Add(time.Minute))
	good := f.reminders.add(2, "ok", epoch.Add(2*time.Minute))
	f.reschedule(t)

	f.clock.Advance(time.Minute)
	stored, err := f.reminders.GetByID(context.Background(), bad.ID)
	if err != nil {
		t.Fatalf("dropped reminder should be kept: %v", err)
	}
	if stored.IsPending() {
		t.Fatalf("failed reminder still pending")
	}
	if st := f.sched.Status(); st.ReminderID != good.ID {
		t.Fatalf("expected scheduler to move on to %d, got %+v", good.ID, st)
	}

	f.dispatcher.setFail(1, false)
	f.clock.Advance(time.Hour)
	for _, m := range f.dispatcher.messages() {
		if m.Msg.Body == "unreachable" {
			t.Fatalf("dropped reminder was retried")
		}
	}
}

func TestConcurrentlyDeletedReminderIsSkipped(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)

	rem := f.reminders.add(1, "gone", epoch.Add(time.Minute))
	f.reschedule(t)
	if err := f.reminders.Delete(context.Background(), rem.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	f.clock.Advance(time.Minute)
	if n := len(f.dispatcher.messages()); n != 0 {
		t.Fatalf("deleted reminder delivered %d times", n)
	}
	if st := f.sched.Status(); st.State != StateIdle {
		t.Fatalf("expected idle, got %+v", st)
	}
}

func TestRescheduleDuringFiringIsPickedUp(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)

	f.reminders.add(1, "first", epoch.Add(time.Minute))
	f.reschedule(t)

	var created int64
	f.dispatcher.hook = func(userID int64, msg notification.Message) {
		if msg.Body != "first" {
			return
		}
		if st := f.sched.Status(); st.State != StateFiring {
			t.Errorf("expected firing state during delivery, got %+v", st)
		}
		created = f.reminders.add(2, "added while firing", epoch.Add(90*time.Second)).ID
		if err := f.sched.Reschedule(context.Background()); err != nil {
			t.Errorf("Reschedule while firing: %v", err)
		}
	}

	f.clock.Advance(time.Minute)
	if st := f.sched.Status(); st.State != StateArmed || st.ReminderID != created {
		t.Fatalf("expected armed for reminder created during firing, got %+v", st)
	}
	if n := f.clock.Active(); n != 1 {
		t.Fatalf("expected exactly one active timer, got %d", n)
	}
}

func TestPersistenceFailureLeavesIdle(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)

	f.reminders.add(1, "x", epoch.Add(time.Minute))
	f.reschedule(t)

	f.reminders.setEarliestErr(errStoreDown)
	if err := f.sched.Reschedule(context.Background()); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if st := f.sched.Status(); st.State != StateIdle {
		t.Fatalf("expected idle after failed read, got %+v", st)
	}
	if n := f.clock.Active(); n != 0 {
		t.Fatalf("old timer left armed: %d", n)
	}

	f.reminders.setEarliestErr(nil)
	f.reschedule(t)
	if st := f.sched.Status(); st.State != StateArmed {
		t.Fatalf("expected recovery on next reschedule, got %+v", st)
	}
}

func TestCancelAndStop(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)

	f.reminders.add(1, "x", epoch.Add(time.Minute))
	f.reschedule(t)

	f.sched.Cancel()
	if st := f.sched.Status(); st.State != StateIdle {
		t.Fatalf("expected idle after cancel, got %+v", st)
	}
	f.clock.Advance(time.Hour)
	if n := len(f.dispatcher.messages()); n != 0 {
		t.Fatalf("cancelled timer fired")
	}

	f.reschedule(t)
	f.sched.Stop()
	if err := f.sched.Reschedule(context.Background()); !errors.Is(err, ErrSchedulerStopped) {
		t.Fatalf("expected ErrSchedulerStopped, got %v", err)
	}
	if n := f.clock.Active(); n != 0 {
		t.Fatalf("timer still armed after stop: %d", n)
	}
}

func TestAtMostOneTimerUnderRandomMutations(t *testing.T) {
	t.Parallel()
	f := newTimerFixture(t)
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 200; i++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(ids) == 0:
			at := f.clock.Now().Add(time.Duration(rng.Intn(600)+1) * time.Second)
			ids = append(ids, f.reminders.add(1, "r", at).ID)
		case op == 1:
			idx := rng.Intn(len(ids))
			_ = f.reminders.Delete(ctx, ids[idx])
			ids = append(ids[:idx], ids[idx+1:]...)
		default:
			f.clock.Advance(time.Duration(rng.Intn(120)) * time.Second)
		}
		f.reschedule(t)

		if n := f.clock.Active(); n > 1 {
			t.Fatalf("step %d: %d timers active", i, n)
		}
		earliest, _ := f.reminders.GetEarliestPending(ctx)
		st := f.sched.Status()
		if earliest == nil {
			if st.State != StateIdle {
				t.Fatalf("step %d: nothing pending but state %+v", i, st)
			}
			continue
		}
		if st.State != StateArmed || st.ReminderID != earliest.ID {
			t.Fatalf("step %d: armed for %+v, earliest is %d", i, st, earliest.ID)
		}
	}
}
