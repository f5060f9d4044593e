package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sizif-22/eventy-back/pkg/db/models"
	pkgerrors "github.com/sizif-22/eventy-back/pkg/errors"
)

// Repository defines persistence operations for events and their
// participant rolls.
type Repository interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	AppendMessageID(ctx context.Context, eventID, messageID uuid.UUID) error
	ListParticipantEmails(ctx context.Context, eventID uuid.UUID) ([]string, error)
	HasParticipant(ctx context.Context, eventID uuid.UUID, email string) (bool, error)
	CreateParticipant(ctx context.Context, participant *models.Participant) (*models.Participant, error)
	CreatePendingParticipant(ctx context.Context, pending *models.PendingParticipant) (*models.PendingParticipant, error)
	GetPendingParticipant(ctx context.Context, id uuid.UUID) (*models.PendingParticipant, error)
	FindPendingByEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.PendingParticipant, error)
	DeletePendingParticipant(ctx context.Context, id uuid.UUID) error
	DeletePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an event repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, err
	}
	return &event, nil
}

// AppendMessageID adds the message id to the event's message list. Appending
// an id that is already present is a no-op, so replays cannot duplicate it.
func (r *repository) AppendMessageID(ctx context.Context, eventID, messageID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
			}
			return err
		}
		if event.Messages.Contains(messageID) {
			return nil
		}
		now := time.Now()
		event.Messages = append(event.Messages, messageID)
		return tx.Model(&event).Updates(map[string]any{
			"messages":     event.Messages,
			"last_updated": &now,
		}).Error
	})
}

func (r *repository) ListParticipantEmails(ctx context.Context, eventID uuid.UUID) ([]string, error) {
	var emails []string
	err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("event_id = ?", eventID).
		Order("joined_at ASC").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *repository) HasParticipant(ctx context.Context, eventID uuid.UUID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("event_id = ? AND email = ?", eventID, email).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateParticipant(ctx context.Context, participant *models.Participant) (*models.Participant, error) {
	if err := r.db.WithContext(ctx).Create(participant).Error; err != nil {
		return nil, err
	}
	return participant, nil
}

func (r *repository) CreatePendingParticipant(ctx context.Context, pending *models.PendingParticipant) (*models.PendingParticipant, error) {
	if err := r.db.WithContext(ctx).Create(pending).Error; err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *repository) GetPendingParticipant(ctx context.Context, id uuid.UUID) (*models.PendingParticipant, error) {
	var pending models.PendingParticipant
	if err := r.db.WithContext(ctx).First(&pending, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pending participant not found")
		}
		return nil, err
	}
	return &pending, nil
}

func (r *repository) FindPendingByEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.PendingParticipant, error) {
	var pending models.PendingParticipant
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND email = ?", eventID, email).
		Order("created_at DESC").
		First(&pending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pending participant not found")
		}
		return nil, err
	}
	return &pending, nil
}

func (r *repository) DeletePendingParticipant(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.PendingParticipant{}, "id = ?", id).Error
}

// DeletePendingOlderThan removes registrations whose verification window has
// lapsed. Returns the number of rows removed.
func (r *repository) DeletePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.PendingParticipant{}, "created_at < ?", cutoff)
	return result.RowsAffected, result.Error
}
