package logout

import (
	"log/slog"
	"net/http"

	resp "bugtrail/internal/lib/api/response"
	"bugtrail/internal/session"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
}

// New clears both session cookies. There is no server-side revocation
// list; an already-issued access token stays valid until its expiry.
func New(
	log *slog.Logger,
	cookies *session.CookieManager,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		cookies.Clear(w)

		log.Info("user logged out")

		ResponseOK(w, r)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
	})
}
