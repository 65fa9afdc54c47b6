package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bugtrail/internal/config"
	"bugtrail/internal/models"
	"bugtrail/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, email, name string, passHash []byte, pictureURL string) (int64, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (email, name, password_hash, picture_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, email, name, passHash, pictureURL).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT id, email, name, password_hash, picture_url
		FROM users
		WHERE lower(email) = lower($1);
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id int64) (models.User, error) {
	query := `
		SELECT id, email, name, password_hash, picture_url
		FROM users
		WHERE id = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepo) scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PassHash,
		&u.PictureURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

func (r *PostgresRepo) SaveInvite(ctx context.Context, token string) error {
	const op = "storage.postgres.SaveInvite"

	query := `
		INSERT INTO invites (token, used)
		VALUES ($1, FALSE);
	`

	if _, err := r.pool.Exec(ctx, query, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) Invite(ctx context.Context, token string) (models.Invite, error) {
	query := `
		SELECT token, used, used_at
		FROM invites
		WHERE token = $1;
	`

	var inv models.Invite

	err := r.pool.QueryRow(ctx, query, token).Scan(&inv.Token, &inv.Used, &inv.UsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Invite{}, storage.ErrInviteNotFound
		}

		return models.Invite{}, err
	}

	return inv, nil
}

func (r *PostgresRepo) MarkInviteUsed(ctx context.Context, token string) error {
	const op = "storage.postgres.MarkInviteUsed"

	query := `UPDATE invites SET used = TRUE, used_at = NOW() WHERE token = $1`

	if _, err := r.pool.Exec(ctx, query, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) PendingInvites(ctx context.Context) ([]models.Invite, error) {
	const op = "storage.postgres.PendingInvites"

	query := `
		SELECT token, used, used_at
		FROM invites
		WHERE used = FALSE;
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Invite

	for rows.Next() {
		var inv models.Invite
		if err := rows.Scan(&inv.Token, &inv.Used, &inv.UsedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, inv)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return out, nil
}

// AddFriend inserts one direction of a friend edge. ON CONFLICT makes
// the insert idempotent so the two-write Connect can be retried or
// raced without duplicates.
func (r *PostgresRepo) AddFriend(ctx context.Context, userID, friendID int64) error {
	const op = "storage.postgres.AddFriend"

	query := `
		INSERT INTO friends (user_id, friend_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, friend_id) DO NOTHING;
	`

	if _, err := r.pool.Exec(ctx, query, userID, friendID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	const op = "storage.postgres.RemoveFriend"

	query := `DELETE FROM friends WHERE user_id = $1 AND friend_id = $2`

	if _, err := r.pool.Exec(ctx, query, userID, friendID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) AreFriends(ctx context.Context, userID, friendID int64) (bool, error) {
	const op = "storage.postgres.AreFriends"

	query := `SELECT EXISTS (SELECT 1 FROM friends WHERE user_id = $1 AND friend_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, friendID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (r *PostgresRepo) FriendsOf(ctx context.Context, userID int64) ([]int64, error) {
	const op = "storage.postgres.FriendsOf"

	query := `SELECT friend_id FROM friends WHERE user_id = $1 ORDER BY friend_id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []int64

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return ids, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
