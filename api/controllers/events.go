package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sizif-22/eventy-back/api/responses"
	"github.com/sizif-22/eventy-back/api/validators"
	"github.com/sizif-22/eventy-back/internal/scheduler"
	pkgerrors "github.com/sizif-22/eventy-back/pkg/errors"
	"github.com/sizif-22/eventy-back/pkg/logger"
)

// scheduleMessageRequest carries a message to deliver now or later. The id
// field names the target event.
type scheduleMessageRequest struct {
	Date    string `json:"date" validate:"required"`
	EventID string `json:"id" validate:"required,uuid"`
	Message string `json:"message" validate:"required,max=1000"`
}

type scheduleMessageResponse struct {
	MessageID       uuid.UUID `json:"messageId"`
	OriginalDate    string    `json:"originalDate"`
	NormalizedDate  time.Time `json:"normalizedDate"`
	ScheduledFor    time.Time `json:"scheduledFor"`
	Timezone        string    `json:"timezone"`
	Status          string    `json:"status"`
	SentImmediately bool      `json:"sentImmediately"`
}

// ScheduleMessage accepts a message for an event and either dispatches it
// immediately or arms a timer for its scheduled date.
func ScheduleMessage(svc scheduler.Service, timezone string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduleMessageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id"))
			return
		}

		result, err := svc.Schedule(r.Context(), scheduler.ScheduleInput{
			EventID: eventID,
			Content: validators.SanitizeString(req.Message, 0),
			Date:    req.Date,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, scheduleMessageResponse{
			MessageID:       result.MessageID,
			OriginalDate:    req.Date,
			NormalizedDate:  result.ScheduledAt,
			ScheduledFor:    result.ScheduledAt,
			Timezone:        timezone,
			Status:          result.Status.String(),
			SentImmediately: result.Dispatched,
		})
	}
}
