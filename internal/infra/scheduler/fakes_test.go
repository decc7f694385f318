package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"reminder_bot/internal/domain/birthday"
	"reminder_bot/internal/domain/notification"
	"reminder_bot/internal/domain/reminder"
	"reminder_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakeClock fires timers only when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	f     func()
	done  bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Set moves the clock without firing anything.
func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Advance moves the clock forward and runs every timer that became due,
// including timers armed by the callbacks themselves.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.done || t.at.After(c.now) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.mu.Unlock()
			return
		}
		next.done = true
		c.mu.Unlock()
		next.f()
	}
}

// Active returns the number of armed, unfired timers.
func (c *fakeClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

type memReminderRepo struct {
	mu          sync.Mutex
	nextID      int64
	rows        map[int64]*reminder.Reminder
	earliestErr error
}

func newMemReminderRepo() *memReminderRepo {
	return &memReminderRepo{rows: make(map[int64]*reminder.Reminder)}
}

func (r *memReminderRepo) add(userID int64, text string, at time.Time) *reminder.Reminder {
	rem := &reminder.Reminder{UserID: userID, Text: text, ScheduledAt: at}
	_ = r.Create(context.Background(), rem)
	return rem
}

func (r *memReminderRepo) Create(_ context.Context, rem *reminder.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rem.ID = r.nextID
	cp := *rem
	r.rows[rem.ID] = &cp
	return nil
}

func (r *memReminderRepo) GetByID(_ context.Context, id int64) (*reminder.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rem, ok := r.rows[id]
	if !ok {
		return nil, reminder.ErrReminderNotFound
	}
	cp := *rem
	return &cp, nil
}

func (r *memReminderRepo) pending() []*reminder.Reminder {
	var out []*reminder.Reminder
	for _, rem := range r.rows {
		if rem.IsPending() {
			cp := *rem
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

func (r *memReminderRepo) ListByUser(_ context.Context, userID int64) ([]*reminder.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reminder.Reminder
	for _, rem := range r.pending() {
		if rem.UserID == userID {
			out = append(out, rem)
		}
	}
	return out, nil
}

func (r *memReminderRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return reminder.ErrReminderNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memReminderRepo) MarkDropped(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rem, ok := r.rows[id]
	if !ok {
		return reminder.ErrReminderNotFound
	}
	rem.Dropped = true
	return nil
}

func (r *memReminderRepo) GetEarliestPending(_ context.Context) (*reminder.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.earliestErr != nil {
		return nil, r.earliestErr
	}
	p := r.pending()
	if len(p) == 0 {
		return nil, nil
	}
	return p[0], nil
}

func (r *memReminderRepo) setEarliestErr(err error) {
	r.mu.Lock()
	r.earliestErr = err
	r.mu.Unlock()
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[int64]*user.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]*user.User)}
}

func (r *memUserRepo) put(id int64, offset int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = &user.User{ID: id, TimezoneOffset: offset}
}

func (r *memUserRepo) offset(id int64) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, false
	}
	return u.TimezoneOffset, true
}

func (r *memUserRepo) GetOrCreate(ctx context.Context, id int64) (*user.User, error) {
	r.mu.Lock()
	if _, ok := r.users[id]; !ok {
		r.users[id] = &user.User{ID: id}
	}
	r.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r *memUserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) UpdateTimezone(_ context.Context, id int64, offsetHours int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	u.TimezoneOffset = offsetHours
	return nil
}

func (r *memUserRepo) UpdateLanguage(_ context.Context, id int64, language string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	u.Language.String, u.Language.Valid = language, language != ""
	return nil
}

type memBirthdayRepo struct {
	mu     sync.Mutex
	users  *memUserRepo
	nextID int64
	rows   map[int64]*birthday.Birthday
}

func newMemBirthdayRepo(users *memUserRepo) *memBirthdayRepo {
	return &memBirthdayRepo{users: users, rows: make(map[int64]*birthday.Birthday)}
}

func (r *memBirthdayRepo) add(b birthday.Birthday) *birthday.Birthday {
	_ = r.Create(context.Background(), &b)
	return &b
}

func (r *memBirthdayRepo) get(id int64) birthday.Birthday {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

func (r *memBirthdayRepo) Create(_ context.Context, b *birthday.Birthday) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.UserID == b.UserID && existing.Subject == b.Subject {
			return birthday.ErrDuplicateBirthday
		}
	}
	r.nextID++
	b.ID = r.nextID
	cp := *b
	r.rows[b.ID] = &cp
	return nil
}

func (r *memBirthdayRepo) GetBySubject(_ context.Context, userID int64, subject birthday.Subject) (*birthday.Birthday, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.rows {
		if b.UserID == userID && b.Subject == subject {
			cp := *b
			return &cp, nil
		}
	}
	return nil, birthday.ErrBirthdayNotFound
}

func (r *memBirthdayRepo) ListByUser(_ context.Context, userID int64) ([]*birthday.Birthday, error) {
	return r.filter(func(b *birthday.Birthday) bool { return b.UserID == userID }), nil
}

func (r *memBirthdayRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return birthday.ErrBirthdayNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memBirthdayRepo) update(id int64, f func(b *birthday.Birthday)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return birthday.ErrBirthdayNotFound
	}
	f(b)
	return nil
}

func (r *memBirthdayRepo) UpdateDate(_ context.Context, id int64, month, day int) error {
	return r.update(id, func(b *birthday.Birthday) { b.Month, b.Day = month, day })
}

func (r *memBirthdayRepo) UpdateLeapPolicy(_ context.Context, id int64, policy birthday.LeapPolicy) error {
	return r.update(id, func(b *birthday.Birthday) { b.LeapPolicy = policy })
}

func (r *memBirthdayRepo) UpdateEarlyNotifyDays(_ context.Context, id int64, days int) error {
	return r.update(id, func(b *birthday.Birthday) { b.EarlyNotifyDays = days })
}

func (r *memBirthdayRepo) UpdateNotifyYear(_ context.Context, id int64, year int) error {
	return r.update(id, func(b *birthday.Birthday) {
		if b.LastNotifiedYear < year {
			b.LastNotifiedYear = year
		}
	})
}

func (r *memBirthdayRepo) UpdateEarlyNotifyYear(_ context.Context, id int64, year int) error {
	return r.update(id, func(b *birthday.Birthday) {
		if b.LastEarlyNotifiedYear < year {
			b.LastEarlyNotifiedYear = year
		}
	})
}

func (r *memBirthdayRepo) ListDistinctTimezoneOffsets(_ context.Context) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[int]bool)
	var out []int
	for _, b := range r.rows {
		off, ok := r.users.offset(b.UserID)
		if ok && !seen[off] {
			seen[off] = true
			out = append(out, off)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (r *memBirthdayRepo) ListDueToday(_ context.Context, month, day, offsetHours, yearFloor int) ([]*birthday.Birthday, error) {
	return r.filter(func(b *birthday.Birthday) bool {
		off, ok := r.users.offset(b.UserID)
		return ok && off == offsetHours && b.Month == month && b.Day == day && b.LastNotifiedYear < yearFloor
	}), nil
}

func (r *memBirthdayRepo) ListWithEarlyNotify(_ context.Context, offsetHours, yearFloor int) ([]*birthday.Birthday, error) {
	return r.filter(func(b *birthday.Birthday) bool {
		off, ok := r.users.offset(b.UserID)
		return ok && off == offsetHours && b.EarlyNotifyDays > 0 && b.LastEarlyNotifiedYear < yearFloor
	}), nil
}

func (r *memBirthdayRepo) filter(keep func(b *birthday.Birthday) bool) []*birthday.Birthday {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*birthday.Birthday
	for _, b := range r.rows {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type sentMessage struct {
	UserID int64
	Msg    notification.Message
}

type recordingDispatcher struct {
	mu     sync.Mutex
	sent   []sentMessage
	failTo map[int64]bool
	hook   func(userID int64, msg notification.Message)
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{failTo: make(map[int64]bool)}
}

// Deliver fails on a done context, as the rate-limited dispatcher does.
func (d *recordingDispatcher) Deliver(ctx context.Context, userID int64, msg notification.Message) bool {
	if ctx.Err() != nil {
		return false
	}
	d.mu.Lock()
	hook := d.hook
	fail := d.failTo[userID]
	d.mu.Unlock()

	if hook != nil {
		hook(userID, msg)
	}
	if fail {
		return false
	}
	d.mu.Lock()
	d.sent = append(d.sent, sentMessage{UserID: userID, Msg: msg})
	d.mu.Unlock()
	return true
}

func (d *recordingDispatcher) setFail(userID int64, fail bool) {
	d.mu.Lock()
	d.failTo[userID] = fail
	d.mu.Unlock()
}

func (d *recordingDispatcher) messages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentMessage(nil), d.sent...)
}

type stubRenderer struct{}

func (stubRenderer) Reminder(r *reminder.Reminder, _ *user.User) notification.Message {
	return notification.Message{Kind: notification.KindReminder, Body: r.Text}
}

func (stubRenderer) Birthday(b *birthday.Birthday, _ *user.User) notification.Message {
	return notification.Message{Kind: notification.KindBirthday, Body: b.Subject.String()}
}

func (stubRenderer) EarlyBirthday(b *birthday.Birthday, _ *user.User, target time.Time) notification.Message {
	return notification.Message{
		Kind: notification.KindBirthdayEarly,
		Body: fmt.Sprintf("%s on %s", b.Subject.String(), target.Format("2006-01-02")),
	}
}

var errStoreDown = errors.New("store unavailable")
