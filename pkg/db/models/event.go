package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/sizif-22/eventy-back/pkg/db/types"
)

// Event is referenced by scheduled messages but owned by the event-management
// side of the product. The core only appends message ids to it.
type Event struct {
	ID          uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title       string            `gorm:"type:text;not null"`
	Messages    dbtypes.UUIDArray `gorm:"type:text"`
	LastUpdated *time.Time        `gorm:"type:timestamptz"`
	CreatedAt   time.Time         `gorm:"type:timestamptz;default:now()"`
}
