package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sizif-22/eventy-back/api/responses"
	"github.com/sizif-22/eventy-back/api/validators"
	"github.com/sizif-22/eventy-back/internal/messages"
	"github.com/sizif-22/eventy-back/internal/scheduler"
	"github.com/sizif-22/eventy-back/pkg/db/models"
	pkgerrors "github.com/sizif-22/eventy-back/pkg/errors"
	"github.com/sizif-22/eventy-back/pkg/logger"
	"github.com/sizif-22/eventy-back/pkg/pagination"
)

type messageResponse struct {
	ID             uuid.UUID  `json:"id"`
	EventID        uuid.UUID  `json:"eventId"`
	Content        string     `json:"content"`
	ScheduledAt    time.Time  `json:"scheduledAt"`
	Status         string     `json:"status"`
	OriginalDate   string     `json:"originalDate"`
	Timezone       string     `json:"timezone"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	LastError      *string    `json:"lastError,omitempty"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt,omitempty"`
	Recipients     []string   `json:"recipients,omitempty"`
	RecipientCount int        `json:"recipientCount"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type messageListResponse struct {
	Messages   []messageResponse `json:"messages"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

func toMessageResponse(m models.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		EventID:        m.EventID,
		Content:        m.Content,
		ScheduledAt:    m.ScheduledAt,
		Status:         m.Status.String(),
		OriginalDate:   m.OriginalDate,
		Timezone:       m.Timezone,
		SentAt:         m.SentAt,
		LastError:      m.LastError,
		LastAttemptAt:  m.LastAttemptAt,
		Recipients:     []string(m.Recipients),
		RecipientCount: m.RecipientCount,
		CreatedAt:      m.CreatedAt,
	}
}

// ListEventMessages returns an event's messages, newest first.
func ListEventMessages(repo messages.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := uuid.Parse(chi.URLParam(r, "eventId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		list, next, err := repo.ListByEvent(r.Context(), eventID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := messageListResponse{NextCursor: next, Messages: make([]messageResponse, 0, len(list))}
		for _, m := range list {
			resp.Messages = append(resp.Messages, toMessageResponse(m))
		}
		responses.WriteSuccess(w, resp)
	}
}

// GetMessage returns a single message's delivery record.
func GetMessage(repo messages.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID, err := uuid.Parse(chi.URLParam(r, "messageId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid message id"))
			return
		}

		msg, err := repo.Get(r.Context(), messageID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toMessageResponse(*msg))
	}
}

// ResendMessage forces an immediate dispatch of a stored message.
func ResendMessage(svc scheduler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID, err := uuid.Parse(chi.URLParam(r, "messageId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid message id"))
			return
		}

		result, err := svc.Resend(r.Context(), messageID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"messageId": result.MessageID,
			"status":    result.Status.String(),
		})
	}
}
