// Package verification runs the email verification flow that turns a
// registration into a confirmed event participant.
package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/sizif-22/eventy-back/internal/events"
	"github.com/sizif-22/eventy-back/pkg/config"
	"github.com/sizif-22/eventy-back/pkg/db/models"
	pkgerrors "github.com/sizif-22/eventy-back/pkg/errors"
	"github.com/sizif-22/eventy-back/pkg/logger"
	"github.com/sizif-22/eventy-back/pkg/mailer"
	"github.com/sizif-22/eventy-back/pkg/qr"
)

// EmailState reports where an address stands for an event.
type EmailState string

const (
	EmailStateAvailable  EmailState = "available"
	EmailStateRegistered EmailState = "registered"
	EmailStatePending    EmailState = "pending"
)

// RegisterResult identifies the pending registration awaiting a code.
type RegisterResult struct {
	PendingID uuid.UUID
	Email     string
}

// Service drives the registration and verification lifecycle.
type Service interface {
	// Register records a pending participant, generates a verification
	// code, and emails it out.
	Register(ctx context.Context, eventID uuid.UUID, email string) (*RegisterResult, error)
	// ResendCode emails the pending registration's code again.
	ResendCode(ctx context.Context, pendingID uuid.UUID) (string, error)
	// CheckEmail reports whether the address is registered, mid
	// verification, or free to register. Lapsed pending registrations are
	// removed on the way.
	CheckEmail(ctx context.Context, eventID uuid.UUID, email string) (EmailState, error)
	// Confirm validates the code, promotes the pending registration to a
	// participant, and sends the QR thank-you email.
	Confirm(ctx context.Context, pendingID uuid.UUID, eventID uuid.UUID, code string) error
}

// CodeStore is the slice of the Redis client used for verification codes.
type CodeStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	VerificationCodeKey(pendingID string) string
}

// ServiceParams wires the verification service.
type ServiceParams struct {
	Repo   events.Repository
	Codes  CodeStore
	Mailer mailer.Mailer
	Logger *logger.Logger
	Config config.VerificationConfig
}

type service struct {
	repo    events.Repository
	codes   CodeStore
	mailer  mailer.Mailer
	logger  *logger.Logger
	codeTTL time.Duration
}

// NewService builds the verification service.
func NewService(params ServiceParams) Service {
	ttl := params.Config.CodeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &service{
		repo:    params.Repo,
		codes:   params.Codes,
		mailer:  params.Mailer,
		logger:  params.Logger,
		codeTTL: ttl,
	}
}

func (s *service) Register(ctx context.Context, eventID uuid.UUID, email string) (*RegisterResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	state, err := s.CheckEmail(ctx, eventID, email)
	if err != nil {
		return nil, err
	}
	switch state {
	case EmailStateRegistered:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered for this event")
	case EmailStatePending:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email verification already in progress")
	}

	pending, err := s.repo.CreatePendingParticipant(ctx, &models.PendingParticipant{
		ID:      uuid.New(),
		EventID: eventID,
		Email:   email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting pending participant")
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	key := s.codes.VerificationCodeKey(pending.ID.String())
	if err := s.codes.Set(ctx, key, code, s.codeTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing verification code")
	}

	if err := s.sendCodeEmail(ctx, email, code); err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithEventID(ctx, eventID.String()), "verification code issued")
	return &RegisterResult{PendingID: pending.ID, Email: email}, nil
}

func (s *service) ResendCode(ctx context.Context, pendingID uuid.UUID) (string, error) {
	pending, err := s.repo.GetPendingParticipant(ctx, pendingID)
	if err != nil {
		return "", err
	}

	code, err := s.codes.Get(ctx, s.codes.VerificationCodeKey(pendingID.String()))
	if err != nil {
		if err == goredis.Nil {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "verification expired or not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading verification code")
	}

	if err := s.sendCodeEmail(ctx, pending.Email, code); err != nil {
		return "", err
	}
	return pending.Email, nil
}

func (s *service) CheckEmail(ctx context.Context, eventID uuid.UUID, email string) (EmailState, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	registered, err := s.repo.HasParticipant(ctx, eventID, email)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking participants")
	}
	if registered {
		return EmailStateRegistered, nil
	}

	pending, err := s.repo.FindPendingByEmail(ctx, eventID, email)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return EmailStateAvailable, nil
		}
		return "", err
	}

	// Lazy expiry: a pending registration past its window is dropped here
	// instead of waiting for the cleanup worker.
	if time.Since(pending.CreatedAt) > s.codeTTL {
		if err := s.repo.DeletePendingParticipant(ctx, pending.ID); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "removing lapsed registration")
		}
		return EmailStateAvailable, nil
	}
	return EmailStatePending, nil
}

func (s *service) Confirm(ctx context.Context, pendingID uuid.UUID, eventID uuid.UUID, code string) error {
	pending, err := s.repo.GetPendingParticipant(ctx, pendingID)
	if err != nil {
		return err
	}

	key := s.codes.VerificationCodeKey(pendingID.String())
	stored, err := s.codes.Get(ctx, key)
	if err != nil {
		if err == goredis.Nil {
			// The code's TTL lapsed; drop the registration with it.
			_ = s.repo.DeletePendingParticipant(ctx, pendingID)
			return pkgerrors.New(pkgerrors.CodeValidation, "verification code expired")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading verification code")
	}
	if stored != code {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid verification code")
	}

	registered, err := s.repo.HasParticipant(ctx, eventID, pending.Email)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking participants")
	}
	if registered {
		_ = s.repo.DeletePendingParticipant(ctx, pendingID)
		_ = s.codes.Del(ctx, key)
		return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	participant, err := s.repo.CreateParticipant(ctx, &models.Participant{
		ID:       uuid.New(),
		EventID:  eventID,
		Email:    pending.Email,
		JoinedAt: time.Now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promoting participant")
	}

	if err := s.repo.DeletePendingParticipant(ctx, pendingID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "removing pending registration")
	}
	_ = s.codes.Del(ctx, key)

	// The thank-you QR encodes the participant id for door check-in.
	// Delivery failure here does not undo the verification.
	if err := s.sendThankYouEmail(ctx, pending.Email, participant.ID); err != nil {
		s.logger.Error(s.logger.WithEventID(ctx, eventID.String()), "sending thank-you email", err)
	}

	s.logger.Info(s.logger.WithEventID(ctx, eventID.String()), "participant verified")
	return nil
}

func (s *service) sendCodeEmail(ctx context.Context, email, code string) error {
	err := s.mailer.Send(ctx, mailer.Message{
		To:      email,
		Subject: "Event Registration Verification Code",
		Text:    fmt.Sprintf("Your verification code is: %s. This code will expire in %d minutes.", code, int(s.codeTTL.Minutes())),
		HTML: fmt.Sprintf(`<div style="font-family: Arial, sans-serif; padding: 20px;">
  <h2>Email Verification</h2>
  <p>Your verification code is:</p>
  <h1 style="font-size: 32px; letter-spacing: 5px; color: #4F46E5; background: #F3F4F6; padding: 20px; text-align: center; border-radius: 8px;">%s</h1>
  <p>This code will expire in %d minutes.</p>
  <p>If you didn't request this code, please ignore this email.</p>
</div>`, code, int(s.codeTTL.Minutes())),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDispatch, err, "sending verification email")
	}
	return nil
}

func (s *service) sendThankYouEmail(ctx context.Context, email string, participantID uuid.UUID) error {
	dataURI, err := qr.EncodeDataURI("participant:"+participantID.String(), qr.DefaultSize)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, mailer.Message{
		To:      email,
		Subject: "Thank You for joining our Event",
		Text:    "Thank you for joining our event. Your check-in QR code is attached.",
		HTML: fmt.Sprintf(`<div style="font-family: sans-serif; font-size: larger;">
  Your QR:<br>
  <img src="%s" alt="QR Code" />
</div>`, dataURI),
	})
}

// generateCode returns a six digit numeric verification code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating verification code")
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
