package invitebatch

import (
	"context"
	"encoding/json"
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
)

// Recipients stays raw because clients send either a delimited string
// or a (possibly nested) array of addresses.
type Request struct {
	Recipients json.RawMessage `json:"recipients"`
}

type Response struct {
	resp.Response
	Results []invites.Result `json:"results"`
}

// New fans out a batch of invites. One failed delivery never fails the
// batch; the response itemizes every recipient's outcome.
func New(
	log *slog.Logger,
	inviteService *invites.Service,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.invitebatch.New"

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
		if err != nil || len(req.Recipients) == 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		recipients, err := invites.ParseRecipients(req.Recipients)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("recipients must be a string or an array of addresses"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		results, err := inviteService.InviteMany(ctx, userID, recipients)
		if err != nil {
			switch {
			case errors.Is(err, invites.ErrNoRecipients):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("no recipients"))
			case errors.Is(err, invites.ErrTooManyRecipients):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("too many recipients"))
			case errors.Is(err, invites.ErrInviterNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("user not found"))
			default:
				log.Error("batch invite failed", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("batch invite dispatched", slog.Int("recipients", len(results)))

		ResponseOK(w, r, results)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, results []invites.Result) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		Results:  results,
	})
}
