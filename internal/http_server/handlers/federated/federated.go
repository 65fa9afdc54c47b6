package federated

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
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Code string `json:"code" validate:"required"`
}

type Response struct {
	resp.Response
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// New handles federated login: the frontend hands over the provider's
// authorization code, the service exchanges it for a verified profile
// and signs the caller in, creating the identity on first contact.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	cookies *session.CookieManager,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.federated.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

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

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		accessToken, refreshToken, err := authService.FederatedLogin(ctx, req.Code)
		if err != nil {
			if errors.Is(err, auth.ErrProviderExchange) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("identity provider rejected the code"))

				return
			}

			log.Error("federated login failed", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("federated login successful")

		cookies.SetSession(w, accessToken, refreshToken)

		ResponseOK(w, r, accessToken, refreshToken)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, accessToken, refreshToken string) {
	render.JSON(w, r, Response{
		Response:     resp.OK(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}
