// Package scheduler arms one-shot timers for future messages and replays
// whatever an earlier process left behind.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/sizif-22/eventy-back/internal/clock"
	"github.com/sizif-22/eventy-back/internal/dispatch"
	"github.com/sizif-22/eventy-back/pkg/logger"
	"github.com/sizif-22/eventy-back/pkg/metrics"
)

// Timers owns the in-process one-shot timer table. One entry exists per
// message at most; arming an already armed message replaces its timer.
type Timers struct {
	cron       *cron.Cron
	dispatcher dispatch.Dispatcher
	logger     *logger.Logger
	metrics    *metrics.SchedulerMetrics
	timeout    time.Duration

	mu      sync.Mutex
	entries map[uuid.UUID]cron.EntryID
}

// TimersParams wires the timer table's dependencies.
type TimersParams struct {
	Clock      *clock.Clock
	Dispatcher dispatch.Dispatcher
	Logger     *logger.Logger
	Metrics    *metrics.SchedulerMetrics
	// DispatchTimeout bounds a timer-fired dispatch attempt.
	DispatchTimeout time.Duration
}

// NewTimers builds the timer table pinned to the clock's location. The spec
// format is minute, hour, day of month and month, which makes each entry
// recur yearly; entries are removed on first fire so they act as one-shots.
func NewTimers(params TimersParams) *Timers {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month)
	timeout := params.DispatchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Timers{
		cron:       cron.New(cron.WithParser(parser), cron.WithLocation(params.Clock.Location())),
		dispatcher: params.Dispatcher,
		logger:     params.Logger,
		metrics:    params.Metrics,
		timeout:    timeout,
		entries:    make(map[uuid.UUID]cron.EntryID),
	}
}

// Start begins running armed timers.
func (t *Timers) Start() {
	t.cron.Start()
}

// Stop halts the timer table and waits for running fires to finish.
func (t *Timers) Stop() {
	<-t.cron.Stop().Done()
}

// Arm schedules a one-shot fire at the given instant. Re-arming a message
// cancels its previous timer first, so exactly one timer survives.
func (t *Timers) Arm(messageID uuid.UUID, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entryID, armed := t.entries[messageID]; armed {
		t.cron.Remove(entryID)
		delete(t.entries, messageID)
	}

	entryID, err := t.cron.AddFunc(clock.TriggerSpec(at), func() {
		t.fire(messageID)
	})
	if err != nil {
		return err
	}
	t.entries[messageID] = entryID
	t.metrics.SetArmedTimers(len(t.entries))
	return nil
}

// Cancel disarms the message's timer if one is armed.
func (t *Timers) Cancel(messageID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entryID, armed := t.entries[messageID]
	if !armed {
		return
	}
	t.cron.Remove(entryID)
	delete(t.entries, messageID)
	t.metrics.SetArmedTimers(len(t.entries))
}

// Armed reports the number of live timers.
func (t *Timers) Armed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// fire consumes the timer before dispatching so the yearly recurrence of
// the underlying spec can never deliver twice.
func (t *Timers) fire(messageID uuid.UUID) {
	t.Cancel(messageID)

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	ctx = t.logger.WithMessageID(ctx, messageID.String())

	if _, err := t.dispatcher.Dispatch(ctx, messageID); err != nil {
		t.logger.Error(ctx, "timer-fired dispatch failed", err)
		return
	}
}
