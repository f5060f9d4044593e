package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sizif-22/eventy-back/internal/clock"
	"github.com/sizif-22/eventy-back/internal/dispatch"
	"github.com/sizif-22/eventy-back/internal/events"
	"github.com/sizif-22/eventy-back/internal/messages"
	"github.com/sizif-22/eventy-back/pkg/db/models"
	"github.com/sizif-22/eventy-back/pkg/enums"
	pkgerrors "github.com/sizif-22/eventy-back/pkg/errors"
	"github.com/sizif-22/eventy-back/pkg/logger"
)

// ScheduleInput is a validated request to deliver a message now or later.
type ScheduleInput struct {
	EventID uuid.UUID
	Content string
	Date    string
}

// ScheduleResult reports what happened to the submitted message.
type ScheduleResult struct {
	MessageID   uuid.UUID
	ScheduledAt time.Time
	// Dispatched is true when the date was already past and the message
	// went out immediately instead of being armed.
	Dispatched bool
	Status     enums.MessageStatus
}

// Service accepts messages, persists them, and routes them to immediate
// dispatch or a one-shot timer.
type Service interface {
	Schedule(ctx context.Context, input ScheduleInput) (*ScheduleResult, error)
	// Resend forces an immediate dispatch of a stored message.
	Resend(ctx context.Context, messageID uuid.UUID) (*ScheduleResult, error)
	// Bootstrap replays unsent messages from previous runs: past-due ones
	// are dispatched right away, future ones get fresh timers.
	Bootstrap(ctx context.Context) (*BootstrapReport, error)
}

// BootstrapReport summarizes a recovery pass.
type BootstrapReport struct {
	Missed  int
	Rearmed int
	Failed  int
}

// ServiceParams wires the scheduling service.
type ServiceParams struct {
	Clock      *clock.Clock
	Timers     *Timers
	Dispatcher dispatch.Dispatcher
	Messages   messages.Repository
	Events     events.Service
	Logger     *logger.Logger
}

type service struct {
	clock      *clock.Clock
	timers     *Timers
	dispatcher dispatch.Dispatcher
	messages   messages.Repository
	events     events.Service
	logger     *logger.Logger
}

// NewService builds the scheduling service and points dispatch's timer
// cancellation back at the timer table.
func NewService(params ServiceParams) Service {
	params.Dispatcher.SetCanceler(params.Timers)
	return &service{
		clock:      params.Clock,
		timers:     params.Timers,
		dispatcher: params.Dispatcher,
		messages:   params.Messages,
		events:     params.Events,
		logger:     params.Logger,
	}
}

func (s *service) Schedule(ctx context.Context, input ScheduleInput) (*ScheduleResult, error) {
	at, err := s.clock.Parse(input.Date)
	if err != nil {
		return nil, err
	}

	// The event must exist before anything is persisted. The roll may
	// still be empty here; recipients are resolved again at send time so
	// participants who join before the fire time are included.
	if err := s.events.Exists(ctx, input.EventID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:           uuid.New(),
		EventID:      input.EventID,
		Content:      input.Content,
		ScheduledAt:  at,
		Status:       enums.MessageStatusPending,
		OriginalDate: input.Date,
		Timezone:     s.clock.Location().String(),
	}
	if _, err := s.messages.Create(ctx, msg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting message")
	}
	if err := s.events.AppendMessage(ctx, input.EventID, msg.ID); err != nil {
		return nil, err
	}

	ctx = s.logger.WithMessageID(s.logger.WithEventID(ctx, input.EventID.String()), msg.ID.String())

	if at.After(s.clock.Now()) {
		if err := s.timers.Arm(msg.ID, at); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeScheduling, err, "arming timer")
		}
		s.logger.Info(ctx, "message scheduled")
		return &ScheduleResult{MessageID: msg.ID, ScheduledAt: at, Status: enums.MessageStatusPending}, nil
	}

	s.logger.Info(ctx, "scheduled date already past, dispatching immediately")
	outcome, err := s.dispatcher.Dispatch(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	return &ScheduleResult{MessageID: msg.ID, ScheduledAt: at, Dispatched: true, Status: outcome.Status}, nil
}

func (s *service) Resend(ctx context.Context, messageID uuid.UUID) (*ScheduleResult, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	outcome, err := s.dispatcher.Dispatch(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return &ScheduleResult{MessageID: messageID, ScheduledAt: msg.ScheduledAt, Dispatched: true, Status: outcome.Status}, nil
}

func (s *service) Bootstrap(ctx context.Context) (*BootstrapReport, error) {
	unsent, err := s.messages.FindUnsent(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading unsent messages")
	}

	report := &BootstrapReport{}
	now := s.clock.Now()

	for _, msg := range unsent {
		msgCtx := s.logger.WithMessageID(ctx, msg.ID.String())

		if msg.ScheduledAt.After(now) {
			if err := s.timers.Arm(msg.ID, msg.ScheduledAt.In(s.clock.Location())); err != nil {
				s.logger.Error(msgCtx, "re-arming timer during recovery", err)
				report.Failed++
				continue
			}
			report.Rearmed++
			continue
		}

		// Past due. Deliver late rather than never.
		if _, err := s.dispatcher.Dispatch(msgCtx, msg.ID); err != nil {
			s.logger.Error(msgCtx, "recovering missed message", err)
			report.Failed++
			continue
		}
		report.Missed++
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"missed":  report.Missed,
		"rearmed": report.Rearmed,
		"failed":  report.Failed,
	}), "recovery pass complete")
	return report, nil
}
