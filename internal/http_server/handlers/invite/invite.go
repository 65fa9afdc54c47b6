package invite

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bugtrail/internal/invites"
	resp "bugtrail/internal/lib/api/response"
	sl "bugtrail/internal/lib/logger"
	"bugtrail/internal/middleware/authn"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
}

type Response struct {
	resp.Response
	InviteURL string `json:"invite_url"`
}

// New creates a single invite for the authenticated caller and emails
// the shareable link to the recipient.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	inviteService *invites.Service,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.invite.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, ok := authn.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("authentication required"))

			return
		}

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		shareURL, err := inviteService.SendInvite(ctx, userID, req.Email)
		if err != nil {
			if errors.Is(err, invites.ErrInviterNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("user not found"))

				return
			}

			log.Error("failed to send invite", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("invite sent", slog.String("to", req.Email))

		ResponseOK(w, r, shareURL)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, shareURL string) {
	render.JSON(w, r, Response{
		Response:  resp.OK(),
		InviteURL: shareURL,
	})
}
