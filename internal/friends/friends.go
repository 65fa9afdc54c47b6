package friends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bugtrail/internal/models"
	"bugtrail/internal/storage"
)

var ErrSelfFriend = errors.New("cannot befriend yourself")

type Store interface {
	AddFriend(ctx context.Context, userID, friendID int64) error
	RemoveFriend(ctx context.Context, userID, friendID int64) error
	AreFriends(ctx context.Context, userID, friendID int64) (bool, error)
	FriendsOf(ctx context.Context, userID int64) ([]int64, error)
}

type UserProvider interface {
	UserByID(ctx context.Context, id int64) (models.User, error)
}

// Graph is the undirected friend relation, materialized as two
// one-directional membership rows per edge. The two writes are issued
// independently with no enclosing transaction: a reader racing a
// Connect may briefly observe an asymmetric edge, but since each write
// is idempotent the settled state is always symmetric.
type Graph struct {
	log   *slog.Logger
	store Store
	users UserProvider
}

func New(log *slog.Logger, store Store, users UserProvider) *Graph {
	return &Graph{
		log:   log,
		store: store,
		users: users,
	}
}

// Connect adds each identity to the other's friend set. Both additions
// are no-ops when the entry already exists; self-loops are rejected.
func (g *Graph) Connect(ctx context.Context, a, b int64) error {
	const op = "friends.Connect"

	if a == b {
		return ErrSelfFriend
	}

	if err := g.store.AddFriend(ctx, a, b); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := g.store.AddFriend(ctx, b, a); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Disconnect removes each direction independently; removing an edge
// that does not exist is a no-op. Self-loops are rejected the same way
// Connect rejects them.
func (g *Graph) Disconnect(ctx context.Context, a, b int64) error {
	const op = "friends.Disconnect"

	if a == b {
		return ErrSelfFriend
	}

	if err := g.store.RemoveFriend(ctx, a, b); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := g.store.RemoveFriend(ctx, b, a); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (g *Graph) Connected(ctx context.Context, a, b int64) (bool, error) {
	const op = "friends.Connected"

	ok, err := g.store.AreFriends(ctx, a, b)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return ok, nil
}

// ListFriends resolves the friend set into client-facing projections.
// A friend whose identity record has vanished is skipped rather than
// failing the whole listing.
func (g *Graph) ListFriends(ctx context.Context, userID int64) ([]models.FriendInfo, error) {
	const op = "friends.ListFriends"

	ids, err := g.store.FriendsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]models.FriendInfo, 0, len(ids))

	for _, id := range ids {
		user, err := g.users.UserByID(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				g.log.Warn("friend reference without identity", slog.Int64("id", id))
				continue
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		out = append(out, models.FriendInfo{
			ID:         user.ID,
			Email:      user.Email,
			Name:       user.Name,
			PictureURL: user.PictureURL,
		})
	}

	return out, nil
}
