package refresh

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bugtrail/internal/auth"
	resp "bugtrail/internal/lib/api/response"
	sl "bugtrail/internal/lib/logger"
	"bugtrail/internal/session"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Request struct {
	RefreshToken string `json:"refresh_token"`
}

type Response struct {
	resp.Response
	AccessToken string `json:"access_token"`
}

// New explicitly exchanges a refresh credential for a fresh access
// credential. The credential is taken from the refresh cookie when
// present, otherwise from the request body.
func New(
	log *slog.Logger,
	authService *auth.Auth,
	cookies *session.CookieManager,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		refreshToken, ok := session.ReadRefresh(r)
		if !ok {
			var req Request
			if err := render.DecodeJSON(r.Body, &req); err == nil {
				refreshToken = req.RefreshToken
			}
		}

		if refreshToken == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("missing refresh token"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		accessToken, err := authService.Refresh(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid credentials"))

				return
			}

			log.Error("failed to refresh tokens", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Access token refreshed")

		cookies.SetAccess(w, accessToken)

		ResponseOK(w, r, accessToken)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, accessToken string) {
	render.JSON(w, r, Response{
		Response:    resp.OK(),
		AccessToken: accessToken,
	})
}
