package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sl "bugtrail/internal/lib/logger"
	"bugtrail/internal/models"
	"bugtrail/internal/storage"
	"bugtrail/internal/tokens"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrProviderExchange   = errors.New("identity provider exchange failed")
)

type UserSaver interface {
	SaveUser(ctx context.Context, email, name string, passHash []byte, pictureURL string) (int64, error)
}

type UserProvider interface {
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
}

// IdentityProvider exchanges a federated authorization code for a
// verified profile. A failed exchange aborts the login with no partial
// state.
type IdentityProvider interface {
	Exchange(ctx context.Context, code string) (models.Profile, error)
}

// Sweeper redeems pending invites addressed to a freshly created
// identity.
type Sweeper interface {
	Sweep(ctx context.Context, newUser models.User) (int, error)
}

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	idProvider  IdentityProvider
	sweeper     Sweeper
	tokens      *tokens.Service
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	idProvider IdentityProvider,
	sweeper Sweeper,
	tokenSvc *tokens.Service,
) *Auth {
	return &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		idProvider:  idProvider,
		sweeper:     sweeper,
		tokens:      tokenSvc,
	}
}

func (a *Auth) Register(ctx context.Context, email, name, pass string) (int64, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	passHash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := a.usrSaver.SaveUser(ctx, email, name, passHash, "")
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return 0, ErrUserExists
		}

		log.Error("failed to save user", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.Int64("uid", id))

	return id, nil
}

// Login checks the password and returns a fresh credential pair.
func (a *Auth) Login(ctx context.Context, email, pass string) (accessToken, refreshToken string, err error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return "", "", ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	// Federated-only accounts have no password hash.
	if len(user.PassHash) == 0 {
		return "", "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(pass)); err != nil {
		log.Info("invalid credentials", sl.Err(err))
		return "", "", ErrInvalidCredentials
	}

	return a.issuePair(user.ID)
}

// FederatedLogin exchanges the authorization code, finds or creates the
// identity and returns a credential pair. The auto-accept sweep runs
// exactly once, on first-time creation, never on a returning login.
func (a *Auth) FederatedLogin(ctx context.Context, code string) (accessToken, refreshToken string, err error) {
	const op = "auth.FederatedLogin"

	log := a.log.With(slog.String("op", op))

	profile, err := a.idProvider.Exchange(ctx, code)
	if err != nil {
		log.Warn("provider exchange failed", sl.Err(err))
		return "", "", ErrProviderExchange
	}

	user, err := a.usrProvider.UserByEmail(ctx, profile.Email)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			log.Error("failed to get user", sl.Err(err))
			return "", "", fmt.Errorf("%s: %w", op, err)
		}

		id, err := a.usrSaver.SaveUser(ctx, profile.Email, profile.Name, nil, profile.PictureURL)
		if err != nil {
			log.Error("failed to create user", sl.Err(err))
			return "", "", fmt.Errorf("%s: %w", op, err)
		}

		user = models.User{
			ID:         id,
			Email:      profile.Email,
			Name:       profile.Name,
			PictureURL: profile.PictureURL,
		}

		log.Info("federated user created", slog.Int64("uid", id))

		if _, err := a.sweeper.Sweep(ctx, user); err != nil {
			// Best-effort reconciliation; the login itself still succeeds.
			log.Error("auto-accept sweep failed", sl.Err(err))
		}
	}

	return a.issuePair(user.ID)
}

// Refresh mints a new access credential from a valid refresh
// credential.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (string, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	userID, err := a.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		log.Warn("invalid refresh token", sl.Err(err))
		return "", ErrInvalidCredentials
	}

	if _, err := a.usrProvider.UserByID(ctx, userID); err != nil {
		log.Warn("refresh for unknown user", sl.Err(err))
		return "", ErrInvalidCredentials
	}

	accessToken, err := a.tokens.IssueAccess(userID)
	if err != nil {
		log.Error("failed to issue access token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return accessToken, nil
}

func (a *Auth) issuePair(userID int64) (string, string, error) {
	const op = "auth.issuePair"

	accessToken, err := a.tokens.IssueAccess(userID)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := a.tokens.IssueRefresh(userID)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	return accessToken, refreshToken, nil
}
