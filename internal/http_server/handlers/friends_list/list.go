package friendslist

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"bugtrail/internal/friends"
	resp "bugtrail/internal/lib/api/response"
	sl "bugtrail/internal/lib/logger"
	"bugtrail/internal/middleware/authn"
	"bugtrail/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Friends []models.FriendInfo `json:"friends"`
}

func New(
	log *slog.Logger,
	graph *friends.Graph,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.friendslist.New"

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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		list, err := graph.ListFriends(ctx, userID)
		if err != nil {
			log.Error("failed to list friends", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		ResponseOK(w, r, list)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, list []models.FriendInfo) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		Friends:  list,
	})
}
