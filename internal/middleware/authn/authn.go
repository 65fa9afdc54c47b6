package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	resp "bugtrail/internal/lib/api/response"
	sl "bugtrail/internal/lib/logger"
	"bugtrail/internal/session"
	"bugtrail/internal/tokens"

	"github.com/go-chi/render"
)

type ctxKey struct{}

// TokenService is the subset of the token service the gate needs.
type TokenService interface {
	VerifyAccess(token string) (int64, error)
	VerifyRefresh(token string) (int64, error)
	IssueAccess(userID int64) (string, error)
}

// New builds the authentication middleware. Decision table over the
// (access, refresh) credential pair:
//
//	valid access                     -> proceed
//	absent access, valid refresh     -> mint access, set cookie, proceed
//	absent access, no valid refresh  -> 401 authentication missing
//	expired access, valid refresh    -> mint access, set cookie, proceed
//	expired access, no valid refresh -> 403 session expired
//	malformed access                 -> 401, no refresh fallback
func New(log *slog.Logger, svc TokenService, cookies *session.CookieManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn.New"

			log := log.With(slog.String("op", op))

			accessToken, hasAccess := session.ReadAccess(r)
			refreshToken, hasRefresh := session.ReadRefresh(r)

			if hasAccess {
				userID, err := svc.VerifyAccess(accessToken)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
					return
				}

				if !errors.Is(err, tokens.ErrTokenExpired) {
					log.Warn("invalid access token", sl.Err(err))

					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, resp.Error("invalid credentials"))

					return
				}

				// Access expired: the refresh credential is the only way in.
				if !hasRefresh {
					render.Status(r, http.StatusForbidden)
					render.JSON(w, r, resp.Error("session expired"))

					return
				}

				renew(w, r, next, log, svc, cookies, refreshToken, http.StatusForbidden, "session expired")

				return
			}

			if !hasRefresh {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("authentication required"))

				return
			}

			renew(w, r, next, log, svc, cookies, refreshToken, http.StatusUnauthorized, "authentication required")
		})
	}
}

// renew verifies the refresh credential, mints a fresh access token and
// writes its cookie before handing off to the next handler. failStatus
// distinguishes the missing-credentials path (401) from the
// expired-session path (403).
func renew(
	w http.ResponseWriter,
	r *http.Request,
	next http.Handler,
	log *slog.Logger,
	svc TokenService,
	cookies *session.CookieManager,
	refreshToken string,
	failStatus int,
	failMsg string,
) {
	userID, err := svc.VerifyRefresh(refreshToken)
	if err != nil {
		log.Warn("invalid refresh token", sl.Err(err))

		render.Status(r, failStatus)
		render.JSON(w, r, resp.Error(failMsg))

		return
	}

	accessToken, err := svc.IssueAccess(userID)
	if err != nil {
		log.Error("failed to issue access token", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("internal error"))

		return
	}

	cookies.SetAccess(w, accessToken)

	next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
}

func withUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated user id attached by the gate.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}
