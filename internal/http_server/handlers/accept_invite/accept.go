package acceptinvite

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bugtrail/internal/friends"
	"bugtrail/internal/invites"
	resp "bugtrail/internal/lib/api/response"
	sl "bugtrail/internal/lib/logger"
	"bugtrail/internal/middleware/authn"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Request struct {
	Token string `json:"token"`
}

type Response struct {
	resp.Response
}

// New consumes an invite token on behalf of the authenticated caller.
// The token may arrive in the body or, when the frontend forwards the
// link directly, as a query parameter.
func New(
	log *slog.Logger,
	inviteService *invites.Service,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.acceptinvite.New"

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

		token := r.URL.Query().Get("token")
		if token == "" {
			var req Request
			if err := render.DecodeJSON(r.Body, &req); err == nil {
				token = req.Token
			}
		}

		if token == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("missing token"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := inviteService.ConsumeInvite(ctx, token, userID); err != nil {
			renderConsumeError(w, r, log, err)
			return
		}

		log.Info("invite accepted", slog.Int64("uid", userID))

		ResponseOK(w, r)
	}
}

func renderConsumeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, invites.ErrTokenNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("invite not found"))
	case errors.Is(err, invites.ErrTokenAlreadyUsed):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("invite already used"))
	case errors.Is(err, invites.ErrTokenInvalid):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("invite invalid or expired"))
	case errors.Is(err, invites.ErrTokenMalformed):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("invite malformed"))
	case errors.Is(err, invites.ErrEmailMismatch):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, resp.Error("invite addressed to a different email"))
	case errors.Is(err, invites.ErrInviterNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("inviter no longer exists"))
	case errors.Is(err, friends.ErrSelfFriend):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("cannot accept your own invite"))
	default:
		log.Error("failed to consume invite", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("Internal error"))
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
	})
}
