// Package dispatch sends scheduled messages to their resolved recipients
// and records the outcome.
package dispatch

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sizif-22/eventy-back/internal/events"
	"github.com/sizif-22/eventy-back/internal/messages"
	"github.com/sizif-22/eventy-back/pkg/enums"
	pkgerrors "github.com/sizif-22/eventy-back/pkg/errors"
	"github.com/sizif-22/eventy-back/pkg/logger"
	"github.com/sizif-22/eventy-back/pkg/mailer"
	"github.com/sizif-22/eventy-back/pkg/metrics"
)

// Outcome is the final delivery result of one dispatch attempt.
type Outcome struct {
	Status     enums.MessageStatus
	Recipients []string
	Delivered  int
	Failed     int
}

// Canceler disarms a pending one-shot timer for a message. Implemented by
// the scheduler; dispatch calls it after a terminal outcome so a manual
// resend cannot leave a live timer behind.
type Canceler interface {
	Cancel(messageID uuid.UUID)
}

// Dispatcher delivers a stored message to its event's current participants.
type Dispatcher interface {
	Dispatch(ctx context.Context, messageID uuid.UUID) (*Outcome, error)
	SetCanceler(c Canceler)
}

// ServiceParams wires the dispatcher's dependencies.
type ServiceParams struct {
	Messages messages.Repository
	Events   events.Service
	Mailer   mailer.Mailer
	Logger   *logger.Logger
	Metrics  *metrics.SchedulerMetrics
	Retry    RetryPolicy
	// SendTimeout bounds each individual recipient send.
	SendTimeout time.Duration
}

type dispatcher struct {
	messages    messages.Repository
	events      events.Service
	mailer      mailer.Mailer
	logger      *logger.Logger
	metrics     *metrics.SchedulerMetrics
	retry       RetryPolicy
	sendTimeout time.Duration

	canceler Canceler

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewDispatcher builds the dispatcher.
func NewDispatcher(params ServiceParams) Dispatcher {
	retry := params.Retry
	if retry == nil {
		retry = NoRetry{}
	}
	sendTimeout := params.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &dispatcher{
		messages:    params.Messages,
		events:      params.Events,
		mailer:      params.Mailer,
		logger:      params.Logger,
		metrics:     params.Metrics,
		retry:       retry,
		sendTimeout: sendTimeout,
		inFlight:    make(map[uuid.UUID]struct{}),
	}
}

func (d *dispatcher) SetCanceler(c Canceler) {
	d.canceler = c
}

// Dispatch resolves the recipient list at send time, delivers to every
// address, and records the terminal state. At most one dispatch per
// message runs at a time inside this process; an overlapping call is
// rejected rather than queued.
func (d *dispatcher) Dispatch(ctx context.Context, messageID uuid.UUID) (*Outcome, error) {
	if !d.acquire(messageID) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "message dispatch already in progress")
	}
	defer d.release(messageID)

	ctx = d.logger.WithMessageID(ctx, messageID.String())
	started := time.Now()

	msg, err := d.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Status.IsTerminal() {
		d.logger.Warn(ctx, "skipping dispatch of already sent message")
		return &Outcome{Status: msg.Status, Recipients: []string(msg.Recipients), Delivered: msg.RecipientCount}, nil
	}

	outcome, err := d.attempt(ctx, msg.EventID, msg.Content)
	if err != nil {
		d.recordFailure(ctx, messageID, err)
		return nil, err
	}

	if err := d.messages.MarkSent(ctx, messageID, outcome.Status, time.Now(), outcome.Recipients); err != nil {
		return nil, err
	}
	if d.canceler != nil {
		d.canceler.Cancel(messageID)
	}

	d.metrics.ObserveDispatch("message", time.Since(started))
	d.metrics.IncOutcome(outcome.Status.String())
	d.logger.Info(d.logger.WithFields(ctx, map[string]any{
		"status":    outcome.Status.String(),
		"delivered": outcome.Delivered,
		"failed":    outcome.Failed,
	}), "message dispatched")
	return outcome, nil
}

// attempt runs the per-recipient send loop, retrying whole-message failures
// according to the retry policy.
func (d *dispatcher) attempt(ctx context.Context, eventID uuid.UUID, content string) (*Outcome, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		outcome, err := d.sendOnce(ctx, eventID, content)
		if err == nil {
			return outcome, nil
		}
		lastErr = err

		delay, retry := d.retry.NextDelay(attempt)
		if !retry {
			return nil, lastErr
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, pkgerrors.Wrap(pkgerrors.CodeDispatch, ctx.Err(), "dispatch canceled while waiting to retry")
		}
	}
}

func (d *dispatcher) sendOnce(ctx context.Context, eventID uuid.UUID, content string) (*Outcome, error) {
	recipients, err := d.events.Resolve(ctx, eventID)
	if err != nil {
		return nil, err
	}

	delivered := make([]string, 0, len(recipients))
	failed := 0
	for _, address := range recipients {
		if err := d.sendTo(ctx, address, content); err != nil {
			failed++
			d.metrics.IncRecipientSend("failure")
			d.logger.Error(d.logger.WithField(ctx, "recipient", address), "recipient send failed", err)
			continue
		}
		delivered = append(delivered, address)
		d.metrics.IncRecipientSend("success")
	}

	if len(delivered) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDispatch, fmt.Sprintf("all %d recipient sends failed", failed))
	}

	status := enums.MessageStatusSent
	if failed > 0 {
		status = enums.MessageStatusPartiallySent
	}
	return &Outcome{
		Status:     status,
		Recipients: delivered,
		Delivered:  len(delivered),
		Failed:     failed,
	}, nil
}

func (d *dispatcher) sendTo(ctx context.Context, address, content string) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return d.mailer.Send(sendCtx, mailer.Message{
		To:      address,
		Subject: "Event Notification",
		Text:    content,
		HTML:    "<p>" + html.EscapeString(content) + "</p>",
	})
}

func (d *dispatcher) recordFailure(ctx context.Context, messageID uuid.UUID, cause error) {
	d.metrics.IncOutcome(enums.MessageStatusFailed.String())
	if err := d.messages.MarkFailed(ctx, messageID, time.Now(), cause.Error()); err != nil {
		d.logger.Error(ctx, "recording dispatch failure", err)
	}
}

func (d *dispatcher) acquire(messageID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[messageID]; busy {
		return false
	}
	d.inFlight[messageID] = struct{}{}
	return true
}

func (d *dispatcher) release(messageID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, messageID)
}
