// Package events resolves recipient lists and maintains the link between
// events and their scheduled messages.
package events

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/sizif-22/eventy-back/pkg/errors"
	"github.com/sizif-22/eventy-back/pkg/logger"
)

// Service exposes event lookups used by scheduling and dispatch.
type Service interface {
	// Resolve returns the current participant emails for the event.
	// Resolution always happens at call time, never from a cached list.
	Resolve(ctx context.Context, eventID uuid.UUID) ([]string, error)
	// Exists reports whether the event is known. An empty participant
	// roll is not an error here; participants may join up to fire time.
	Exists(ctx context.Context, eventID uuid.UUID) error
	// AppendMessage links a stored message to its event. Idempotent.
	AppendMessage(ctx context.Context, eventID, messageID uuid.UUID) error
}

// ServiceParams wires the dependencies for the event service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService builds the event service.
func NewService(params ServiceParams) Service {
	return &service{
		repo:   params.Repo,
		logger: params.Logger,
	}
}

func (s *service) Resolve(ctx context.Context, eventID uuid.UUID) ([]string, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	emails, err := s.repo.ListParticipantEmails(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing participants")
	}
	if len(emails) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDispatch, "event has no participants")
	}
	return emails, nil
}

func (s *service) Exists(ctx context.Context, eventID uuid.UUID) error {
	_, err := s.repo.GetEvent(ctx, eventID)
	return err
}

func (s *service) AppendMessage(ctx context.Context, eventID, messageID uuid.UUID) error {
	ctx = s.logger.WithEventID(ctx, eventID.String())
	if err := s.repo.AppendMessageID(ctx, eventID, messageID); err != nil {
		return err
	}
	s.logger.Info(s.logger.WithMessageID(ctx, messageID.String()), "message linked to event")
	return nil
}
