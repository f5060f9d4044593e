package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a confirmed recipient of an event's notifications.
type Participant struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Email    string    `gorm:"type:text;not null;index"`
	JoinedAt time.Time `gorm:"type:timestamptz;default:now()"`
}

// PendingParticipant holds a registration awaiting email verification. The
// verification code itself lives in Redis under a TTL; CreatedAt backs the
// lazy-expiry path and the cleanup worker.
type PendingParticipant struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Email     string    `gorm:"type:text;not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;default:now()"`
}
