package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sizif-22/eventy-back/internal/clock"
	"github.com/sizif-22/eventy-back/internal/dispatch"
	"github.com/sizif-22/eventy-back/internal/messages"
	"github.com/sizif-22/eventy-back/pkg/db/models"
	"github.com/sizif-22/eventy-back/pkg/enums"
	pkgerrors "github.com/sizif-22/eventy-back/pkg/errors"
	"github.com/sizif-22/eventy-back/pkg/logger"
	"github.com/sizif-22/eventy-back/pkg/metrics"
	"github.com/sizif-22/eventy-back/pkg/pagination"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	calls    []uuid.UUID
	err      error
	canceler dispatch.Canceler
}

func (f *fakeDispatcher) Dispatch(_ context.Context, id uuid.UUID) (*dispatch.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.canceler != nil {
		f.canceler.Cancel(id)
	}
	return &dispatch.Outcome{Status: enums.MessageStatusSent, Delivered: 1}, nil
}

func (f *fakeDispatcher) SetCanceler(c dispatch.Canceler) { f.canceler = c }

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeMessages struct {
	mu     sync.Mutex
	stored map[uuid.UUID]*models.Message
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{stored: make(map[uuid.UUID]*models.Message)}
}

func (f *fakeMessages) Create(_ context.Context, m *models.Message) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[m.ID] = m
	return m, nil
}

func (f *fakeMessages) Get(_ context.Context, id uuid.UUID) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.stored[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
	}
	clone := *m
	return &clone, nil
}

func (f *fakeMessages) MarkSent(_ context.Context, id uuid.UUID, status enums.MessageStatus, sentAt time.Time, recipients []string) error {
	return nil
}

func (f *fakeMessages) MarkFailed(_ context.Context, id uuid.UUID, attemptAt time.Time, cause string) error {
	return nil
}

func (f *fakeMessages) FindUnsent(context.Context) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.stored {
		if !m.Status.IsTerminal() {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessages) ListByEvent(context.Context, uuid.UUID, pagination.Params) ([]models.Message, string, error) {
	return nil, "", nil
}

func (f *fakeMessages) WithTx(*gorm.DB) messages.Repository { return f }

type fakeEvents struct {
	known map[uuid.UUID][]string
}

func (f *fakeEvents) Resolve(_ context.Context, eventID uuid.UUID) ([]string, error) {
	emails, ok := f.known[eventID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	if len(emails) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDispatch, "event has no participants")
	}
	return emails, nil
}

func (f *fakeEvents) Exists(_ context.Context, eventID uuid.UUID) error {
	if _, ok := f.known[eventID]; !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	return nil
}

func (f *fakeEvents) AppendMessage(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func fixedClock(t *testing.T, at time.Time) *clock.Clock {
	t.Helper()
	c, err := clock.NewFixed("Africa/Cairo", at)
	if err != nil {
		t.Fatalf("fixed clock: %v", err)
	}
	return c
}

func newTestTimers(t *testing.T, c *clock.Clock, d dispatch.Dispatcher) *Timers {
	t.Helper()
	return NewTimers(TimersParams{
		Clock:           c,
		Dispatcher:      d,
		Logger:          logger.New(logger.Options{ServiceName: "scheduler-test"}),
		Metrics:         metrics.NewSchedulerMetrics(nil),
		DispatchTimeout: time.Second,
	})
}

func TestArmReplacesExistingTimer(t *testing.T) {
	c := fixedClock(t, time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC))
	timers := newTestTimers(t, c, &fakeDispatcher{})
	id := uuid.New()

	if err := timers.Arm(id, c.Now().Add(time.Hour)); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if err := timers.Arm(id, c.Now().Add(2*time.Hour)); err != nil {
		t.Fatalf("re-arm: %v", err)
	}
	if got := timers.Armed(); got != 1 {
		t.Fatalf("expected a single live timer after re-arm, got %d", got)
	}
}

func TestCancelDisarms(t *testing.T) {
	c := fixedClock(t, time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC))
	timers := newTestTimers(t, c, &fakeDispatcher{})
	id := uuid.New()

	if err := timers.Arm(id, c.Now().Add(time.Hour)); err != nil {
		t.Fatalf("arm: %v", err)
	}
	timers.Cancel(id)
	timers.Cancel(id) // cancel of an unarmed message is a no-op
	if got := timers.Armed(); got != 0 {
		t.Fatalf("expected no timers, got %d", got)
	}
}

func TestFireConsumesTimerAndDispatchesOnce(t *testing.T) {
	c := fixedClock(t, time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC))
	d := &fakeDispatcher{}
	timers := newTestTimers(t, c, d)
	id := uuid.New()

	if err := timers.Arm(id, c.Now().Add(time.Hour)); err != nil {
		t.Fatalf("arm: %v", err)
	}

	timers.fire(id)
	if got := timers.Armed(); got != 0 {
		t.Fatalf("timer not consumed on fire, %d still armed", got)
	}
	if d.callCount() != 1 {
		t.Fatalf("expected one dispatch, got %d", d.callCount())
	}
}

func newTestService(t *testing.T, c *clock.Clock, d dispatch.Dispatcher, store *fakeMessages, ev *fakeEvents) (Service, *Timers) {
	t.Helper()
	timers := newTestTimers(t, c, d)
	svc := NewService(ServiceParams{
		Clock:      c,
		Timers:     timers,
		Dispatcher: d,
		Messages:   store,
		Events:     ev,
		Logger:     logger.New(logger.Options{ServiceName: "scheduler-test"}),
	})
	return svc, timers
}

func TestScheduleFutureArmsTimer(t *testing.T) {
	now := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	c := fixedClock(t, now)
	eventID := uuid.New()
	store := newFakeMessages()
	d := &fakeDispatcher{}
	svc, timers := newTestService(t, c, d, store, &fakeEvents{known: map[uuid.UUID][]string{
		eventID: {"a@example.com"},
	}})

	result, err := svc.Schedule(context.Background(), ScheduleInput{
		EventID: eventID,
		Content: "see you soon",
		Date:    "2026-06-02 18:00:00",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if result.Dispatched {
		t.Fatal("future message must not dispatch immediately")
	}
	if result.Status != enums.MessageStatusPending {
		t.Fatalf("expected pending, got %s", result.Status)
	}
	if timers.Armed() != 1 {
		t.Fatalf("expected one armed timer, got %d", timers.Armed())
	}
	if d.callCount() != 0 {
		t.Fatalf("dispatcher must not run, got %d calls", d.callCount())
	}
	if _, ok := store.stored[result.MessageID]; !ok {
		t.Fatal("message not persisted")
	}
}

func TestScheduleAcceptsEventWithEmptyRoll(t *testing.T) {
	now := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	c := fixedClock(t, now)
	eventID := uuid.New()
	store := newFakeMessages()
	d := &fakeDispatcher{}
	// The event exists but nobody has joined yet. Scheduling must still
	// succeed; the roll is read again when the timer fires.
	svc, timers := newTestService(t, c, d, store, &fakeEvents{known: map[uuid.UUID][]string{
		eventID: {},
	}})

	result, err := svc.Schedule(context.Background(), ScheduleInput{
		EventID: eventID,
		Content: "doors open at six",
		Date:    "2026-06-02 18:00:00",
	})
	if err != nil {
		t.Fatalf("schedule for empty roll: %v", err)
	}
	if timers.Armed() != 1 {
		t.Fatalf("expected one armed timer, got %d", timers.Armed())
	}
	if _, ok := store.stored[result.MessageID]; !ok {
		t.Fatal("message not persisted")
	}
}

func TestSchedulePastDispatchesImmediately(t *testing.T) {
	now := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	c := fixedClock(t, now)
	eventID := uuid.New()
	store := newFakeMessages()
	d := &fakeDispatcher{}
	svc, timers := newTestService(t, c, d, store, &fakeEvents{known: map[uuid.UUID][]string{
		eventID: {"a@example.com"},
	}})

	result, err := svc.Schedule(context.Background(), ScheduleInput{
		EventID: eventID,
		Content: "you missed it",
		Date:    "2026-05-30 09:00:00",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !result.Dispatched {
		t.Fatal("past message must dispatch immediately")
	}
	if result.Status != enums.MessageStatusSent {
		t.Fatalf("expected sent, got %s", result.Status)
	}
	if timers.Armed() != 0 {
		t.Fatalf("no timer should be armed, got %d", timers.Armed())
	}
	if d.callCount() != 1 {
		t.Fatalf("expected one dispatch, got %d", d.callCount())
	}
}

func TestScheduleRejectsUnknownEvent(t *testing.T) {
	c := fixedClock(t, time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC))
	store := newFakeMessages()
	svc, _ := newTestService(t, c, &fakeDispatcher{}, store, &fakeEvents{known: map[uuid.UUID][]string{}})

	_, err := svc.Schedule(context.Background(), ScheduleInput{
		EventID: uuid.New(),
		Content: "hello",
		Date:    "2026-06-02 18:00:00",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(store.stored) != 0 {
		t.Fatal("nothing should be persisted for an unknown event")
	}
}

func TestScheduleRejectsBadDate(t *testing.T) {
	c := fixedClock(t, time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, c, &fakeDispatcher{}, newFakeMessages(), &fakeEvents{})

	_, err := svc.Schedule(context.Background(), ScheduleInput{
		EventID: uuid.New(),
		Content: "hello",
		Date:    "soonish",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBootstrapPartitionsUnsentMessages(t *testing.T) {
	now := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	c := fixedClock(t, now)
	eventID := uuid.New()
	store := newFakeMessages()
	d := &fakeDispatcher{}
	svc, timers := newTestService(t, c, d, store, &fakeEvents{known: map[uuid.UUID][]string{
		eventID: {"a@example.com"},
	}})

	past := &models.Message{ID: uuid.New(), EventID: eventID, ScheduledAt: now.Add(-time.Hour), Status: enums.MessageStatusPending}
	futureA := &models.Message{ID: uuid.New(), EventID: eventID, ScheduledAt: now.Add(time.Hour), Status: enums.MessageStatusPending}
	futureB := &models.Message{ID: uuid.New(), EventID: eventID, ScheduledAt: now.Add(2 * time.Hour), Status: enums.MessageStatusPending}
	sentAt := now.Add(-2 * time.Hour)
	alreadySent := &models.Message{ID: uuid.New(), EventID: eventID, ScheduledAt: sentAt, Status: enums.MessageStatusSent, SentAt: &sentAt}
	for _, m := range []*models.Message{past, futureA, futureB, alreadySent} {
		store.stored[m.ID] = m
	}

	report, err := svc.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if report.Missed != 1 || report.Rearmed != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if timers.Armed() != 2 {
		t.Fatalf("expected 2 re-armed timers, got %d", timers.Armed())
	}
	if d.callCount() != 1 {
		t.Fatalf("expected 1 recovery dispatch, got %d", d.callCount())
	}
	if d.calls[0] != past.ID {
		t.Fatalf("wrong message recovered: %s", d.calls[0])
	}
}

func TestBootstrapContinuesPastFailures(t *testing.T) {
	now := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	c := fixedClock(t, now)
	eventID := uuid.New()
	store := newFakeMessages()
	d := &fakeDispatcher{err: pkgerrors.New(pkgerrors.CodeDispatch, "relay down")}
	svc, timers := newTestService(t, c, d, store, &fakeEvents{known: map[uuid.UUID][]string{
		eventID: {"a@example.com"},
	}})

	past := &models.Message{ID: uuid.New(), EventID: eventID, ScheduledAt: now.Add(-time.Hour), Status: enums.MessageStatusPending}
	future := &models.Message{ID: uuid.New(), EventID: eventID, ScheduledAt: now.Add(time.Hour), Status: enums.MessageStatusPending}
	store.stored[past.ID] = past
	store.stored[future.ID] = future

	report, err := svc.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if report.Failed != 1 || report.Rearmed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if timers.Armed() != 1 {
		t.Fatalf("failure on one message must not stop re-arming, got %d", timers.Armed())
	}
}

func TestResendDispatchesStoredMessage(t *testing.T) {
	now := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	c := fixedClock(t, now)
	eventID := uuid.New()
	store := newFakeMessages()
	d := &fakeDispatcher{}
	svc, _ := newTestService(t, c, d, store, &fakeEvents{known: map[uuid.UUID][]string{
		eventID: {"a@example.com"},
	}})

	msg := &models.Message{ID: uuid.New(), EventID: eventID, ScheduledAt: now.Add(-time.Hour), Status: enums.MessageStatusFailed}
	store.stored[msg.ID] = msg

	result, err := svc.Resend(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if !result.Dispatched || result.Status != enums.MessageStatusSent {
		t.Fatalf("unexpected result: %+v", result)
	}

	_, err = svc.Resend(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
