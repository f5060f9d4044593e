package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sizif-22/eventy-back/api/responses"
	"github.com/sizif-22/eventy-back/api/validators"
	"github.com/sizif-22/eventy-back/internal/verification"
	pkgerrors "github.com/sizif-22/eventy-back/pkg/errors"
	"github.com/sizif-22/eventy-back/pkg/logger"
)

type registerRequest struct {
	EventID string `json:"eventId" validate:"required,uuid"`
	Email   string `json:"email" validate:"required,email"`
}

// Register starts a verification flow for an event registration.
func Register(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id"))
			return
		}

		result, err := svc.Register(r.Context(), eventID, req.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"documentId": result.PendingID,
			"email":      result.Email,
			"message":    "Verification code sent",
		})
	}
}

type verifyEmailRequest struct {
	DocumentID string `json:"documentId" validate:"required,uuid"`
}

// VerifyEmail re-sends the verification code for a pending registration.
func VerifyEmail(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyEmailRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pendingID, err := uuid.Parse(req.DocumentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document id"))
			return
		}

		email, err := svc.ResendCode(r.Context(), pendingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"message": "Verification code sent",
			"email":   email,
		})
	}
}

type checkEmailRequest struct {
	EventID string `json:"eventId" validate:"required,uuid"`
	Email   string `json:"email" validate:"required,email"`
}

// CheckEmail reports whether an address can still register for an event.
func CheckEmail(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkEmailRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id"))
			return
		}

		state, err := svc.CheckEmail(r.Context(), eventID, req.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"exists": state != verification.EmailStateAvailable,
			"state":  string(state),
		})
	}
}

type confirmVerificationRequest struct {
	DocumentID string `json:"documentId" validate:"required,uuid"`
	EventID    string `json:"eventId" validate:"required,uuid"`
	Code       string `json:"code" validate:"required,len=6"`
}

// ConfirmVerification validates the emailed code and promotes the pending
// registration to a confirmed participant.
func ConfirmVerification(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmVerificationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pendingID, err := uuid.Parse(req.DocumentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document id"))
			return
		}
		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id"))
			return
		}

		if err := svc.Confirm(r.Context(), pendingID, eventID, req.Code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"message": "Email verified successfully",
		})
	}
}
