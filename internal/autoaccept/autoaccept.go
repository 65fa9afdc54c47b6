package autoaccept

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bugtrail/internal/invites"
	sl "bugtrail/internal/lib/logger"
	"bugtrail/internal/models"
)

type InviteStore interface {
	PendingInvites(ctx context.Context) ([]models.Invite, error)
	MarkInviteUsed(ctx context.Context, token string) error
}

type UserProvider interface {
	UserByEmail(ctx context.Context, email string) (models.User, error)
}

type FriendGraph interface {
	Connect(ctx context.Context, a, b int64) error
	Connected(ctx context.Context, a, b int64) (bool, error)
}

// Coordinator runs the one-shot reconciliation sweep after a brand-new
// identity is created through federated login: every pending invite
// addressed to the new email is redeemed, everything else is left
// untouched. The sweep is best-effort by design; invites that fail
// verification or whose inviter is gone are skipped silently.
//
// This is an unindexed linear scan over all pending invites and does
// not scale to large backlogs. Two concurrent sweeps for the same email
// can both redeem an invite before either marks it used; Connect being
// idempotent keeps the graph correct, only the used flag is written
// twice.
type Coordinator struct {
	log    *slog.Logger
	store  InviteStore
	users  UserProvider
	graph  FriendGraph
	secret string
}

func New(log *slog.Logger, store InviteStore, users UserProvider, graph FriendGraph, secret string) *Coordinator {
	return &Coordinator{
		log:    log,
		store:  store,
		users:  users,
		graph:  graph,
		secret: secret,
	}
}

// Sweep returns the number of invites accepted for newUser.
func (c *Coordinator) Sweep(ctx context.Context, newUser models.User) (int, error) {
	const op = "autoaccept.Sweep"

	log := c.log.With(
		slog.String("op", op),
		slog.Int64("uid", newUser.ID),
	)

	pending, err := c.store.PendingInvites(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	accepted := 0

	for _, inv := range pending {
		claims, err := invites.ParseToken(inv.Token, c.secret)
		if err != nil {
			// Expired, tampered or foreign tokens are not errors here.
			continue
		}

		if !strings.EqualFold(claims.InvitedEmail, newUser.Email) {
			continue
		}

		inviter, err := c.users.UserByEmail(ctx, claims.InvitedBy)
		if err != nil {
			log.Warn("inviter not resolvable, skipping invite", sl.Err(err))
			continue
		}

		connected, err := c.graph.Connected(ctx, inviter.ID, newUser.ID)
		if err != nil {
			log.Warn("failed to check existing edge", sl.Err(err))
			continue
		}

		if !connected {
			if err := c.graph.Connect(ctx, inviter.ID, newUser.ID); err != nil {
				log.Warn("failed to connect", sl.Err(err))
				continue
			}
		}

		if err := c.store.MarkInviteUsed(ctx, inv.Token); err != nil {
			log.Warn("failed to mark invite used", sl.Err(err))
			continue
		}

		accepted++
	}

	if accepted > 0 {
		log.Info("auto-accepted pending invites", slog.Int("count", accepted))
	}

	return accepted, nil
}
