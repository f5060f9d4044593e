package messages

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sizif-22/eventy-back/pkg/db/models"
	dbtypes "github.com/sizif-22/eventy-back/pkg/db/types"
	"github.com/sizif-22/eventy-back/pkg/enums"
	pkgerrors "github.com/sizif-22/eventy-back/pkg/errors"
	"github.com/sizif-22/eventy-back/pkg/pagination"
)

// Repository defines persistence operations for scheduled messages.
type Repository interface {
	Create(ctx context.Context, message *models.Message) (*models.Message, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Message, error)
	MarkSent(ctx context.Context, id uuid.UUID, status enums.MessageStatus, sentAt time.Time, recipients []string) error
	MarkFailed(ctx context.Context, id uuid.UUID, attemptAt time.Time, cause string) error
	FindUnsent(ctx context.Context) ([]models.Message, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, params pagination.Params) ([]models.Message, string, error)
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a message repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, message *models.Message) (*models.Message, error) {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
		}
		return nil, err
	}
	return &message, nil
}

// MarkSent records a terminal outcome together with the recipient
// snapshot taken at send time.
func (r *repository) MarkSent(ctx context.Context, id uuid.UUID, status enums.MessageStatus, sentAt time.Time, recipients []string) error {
	updates := map[string]any{
		"status":          status,
		"sent_at":         sentAt,
		"recipients":      dbtypes.StringList(recipients),
		"recipient_count": len(recipients),
	}
	result := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
	}
	return nil
}

// MarkFailed records the failure cause without changing delivery intent:
// the message stays eligible for recovery until it reaches a terminal state.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, attemptAt time.Time, cause string) error {
	updates := map[string]any{
		"status":          enums.MessageStatusFailed,
		"last_error":      cause,
		"last_attempt_at": attemptAt,
	}
	result := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
	}
	return nil
}

// FindUnsent returns every message that has not reached a terminal
// delivery state, ordered by scheduled time.
func (r *repository) FindUnsent(ctx context.Context) ([]models.Message, error) {
	var list []models.Message
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []enums.MessageStatus{enums.MessageStatusSent, enums.MessageStatusPartiallySent}).
		Order("scheduled_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListByEvent pages through an event's messages newest first.
func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID, params pagination.Params) ([]models.Message, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)

	q := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC, id DESC").
		Limit(limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var list []models.Message
	if err := q.Find(&list).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(list) == limit {
		list = list[:limit-1]
		last := list[len(list)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, next, nil
}
