package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/sizif-22/eventy-back/pkg/db/types"
	"github.com/sizif-22/eventy-back/pkg/enums"
)

// Message is the durable record of a scheduled notification. The recipient
// snapshot is written after a send for audit only; resolution always happens
// again at send time.
type Message struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID        uuid.UUID           `gorm:"type:uuid;not null;index"`
	Content        string              `gorm:"type:text;not null"`
	ScheduledAt    time.Time           `gorm:"type:timestamptz;not null"`
	Status         enums.MessageStatus `gorm:"type:text;not null;default:'pending';index"`
	OriginalDate   string              `gorm:"type:text"`
	Timezone       string              `gorm:"type:text;not null"`
	SentAt         *time.Time          `gorm:"type:timestamptz"`
	LastError      *string             `gorm:"type:text"`
	LastAttemptAt  *time.Time          `gorm:"type:timestamptz"`
	Recipients     dbtypes.StringList  `gorm:"type:text"`
	RecipientCount int                 `gorm:"not null;default:0"`
	CreatedAt      time.Time           `gorm:"type:timestamptz;default:now()"`
}
