package invites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	sl "bugtrail/internal/lib/logger"
	"bugtrail/internal/models"
	"bugtrail/internal/storage"

	"github.com/go-playground/validator/v10"
)

var (
	ErrTokenNotFound     = errors.New("invite token not found")
	ErrTokenAlreadyUsed  = errors.New("invite token already used")
	ErrEmailMismatch     = errors.New("invite addressed to a different email")
	ErrInviterNotFound   = errors.New("inviter not found")
	ErrNoRecipients      = errors.New("no recipients")
	ErrTooManyRecipients = errors.New("too many recipients")
)

const (
	StatusSent    = "sent"
	StatusInvalid = "invalid"
	StatusFailed  = "failed"
)

// Result is the per-recipient outcome of a batch invite.
type Result struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

type InviteStore interface {
	SaveInvite(ctx context.Context, token string) error
	Invite(ctx context.Context, token string) (models.Invite, error)
	MarkInviteUsed(ctx context.Context, token string) error
}

type UserProvider interface {
	UserByID(ctx context.Context, id int64) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
}

type FriendConnector interface {
	Connect(ctx context.Context, a, b int64) error
}

type NotificationSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service implements the invitation protocol: minting single-use signed
// invite tokens, consuming them into friend edges, and fanning out
// batch invitations.
type Service struct {
	log           *slog.Logger
	store         InviteStore
	users         UserProvider
	graph         FriendConnector
	sender        NotificationSender
	secret        string
	tokenTTL      time.Duration
	frontendURL   string
	maxRecipients int

	validate *validator.Validate
}

func New(
	log *slog.Logger,
	store InviteStore,
	users UserProvider,
	graph FriendConnector,
	sender NotificationSender,
	secret string,
	tokenTTL time.Duration,
	frontendURL string,
	maxRecipients int,
) *Service {
	return &Service{
		log:           log,
		store:         store,
		users:         users,
		graph:         graph,
		sender:        sender,
		secret:        secret,
		tokenTTL:      tokenTTL,
		frontendURL:   frontendURL,
		maxRecipients: maxRecipients,
		validate:      validator.New(),
	}
}

// CreateInvite mints a signed token addressed to inviteeEmail, persists
// the single-use record and returns the token with its shareable URL.
func (s *Service) CreateInvite(ctx context.Context, inviter models.User, inviteeEmail string) (token, shareURL string, err error) {
	const op = "invites.CreateInvite"

	token, err = NewToken(inviteeEmail, inviter.Email, s.secret, s.tokenTTL)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.SaveInvite(ctx, token); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	shareURL = fmt.Sprintf("%s/accept-invite?token=%s&inviter=%s",
		s.frontendURL,
		url.QueryEscape(token),
		url.QueryEscape(inviter.Name),
	)

	return token, shareURL, nil
}

// SendInvite creates a single invite and dispatches the email. The
// share URL is returned so the caller can also hand the link out
// directly.
func (s *Service) SendInvite(ctx context.Context, inviterID int64, inviteeEmail string) (string, error) {
	const op = "invites.SendInvite"

	inviter, err := s.users.UserByID(ctx, inviterID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", ErrInviterNotFound
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	_, shareURL, err := s.CreateInvite(ctx, inviter, inviteeEmail)
	if err != nil {
		return "", err
	}

	subject, body := inviteEmail(inviter.Name, shareURL)

	if err := s.sender.Send(ctx, inviteeEmail, subject, body); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return shareURL, nil
}

// ConsumeInvite redeems a token on behalf of the authenticated caller.
// Checks run in order: persisted record exists, not yet used, signature
// and claims verify, the token is addressed to the caller, the inviter
// still exists. Success connects the pair and burns the record.
func (s *Service) ConsumeInvite(ctx context.Context, rawToken string, callerID int64) error {
	const op = "invites.ConsumeInvite"

	log := s.log.With(slog.String("op", op))

	record, err := s.store.Invite(ctx, rawToken)
	if err != nil {
		if errors.Is(err, storage.ErrInviteNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if record.Used {
		return ErrTokenAlreadyUsed
	}

	claims, err := ParseToken(rawToken, s.secret)
	if err != nil {
		return err
	}

	caller, err := s.users.UserByID(ctx, callerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !strings.EqualFold(claims.InvitedEmail, caller.Email) {
		return ErrEmailMismatch
	}

	inviter, err := s.users.UserByEmail(ctx, claims.InvitedBy)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrInviterNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.graph.Connect(ctx, inviter.ID, caller.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.MarkInviteUsed(ctx, rawToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("invite consumed",
		slog.Int64("inviter", inviter.ID),
		slog.Int64("invitee", caller.ID),
	)

	return nil
}

// InviteMany fans out one invite per deduplicated address and waits for
// every dispatch. One recipient failing never aborts the others; the
// returned results itemize each outcome. The whole batch is rejected
// only when empty or over the recipient limit.
func (s *Service) InviteMany(ctx context.Context, inviterID int64, recipients []string) ([]Result, error) {
	const op = "invites.InviteMany"

	addrs := dedupe(recipients)

	if len(addrs) == 0 {
		return nil, ErrNoRecipients
	}
	if len(addrs) > s.maxRecipients {
		return nil, ErrTooManyRecipients
	}

	inviter, err := s.users.UserByID(ctx, inviterID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInviterNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	results := make([]Result, len(addrs))

	var wg sync.WaitGroup

	for i, addr := range addrs {
		results[i] = Result{Email: addr}

		if s.validate.Var(addr, "required,email") != nil {
			results[i].Status = StatusInvalid
			continue
		}

		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()

			_, shareURL, err := s.CreateInvite(ctx, inviter, addr)
			if err != nil {
				s.log.Error("failed to create invite", slog.String("to", addr), sl.Err(err))
				results[i].Status = StatusFailed
				return
			}

			subject, body := inviteEmail(inviter.Name, shareURL)

			if err := s.sender.Send(ctx, addr, subject, body); err != nil {
				s.log.Error("failed to send invite", slog.String("to", addr), sl.Err(err))
				results[i].Status = StatusFailed
				return
			}

			results[i].Status = StatusSent
		}(i, addr)
	}

	wg.Wait()

	return results, nil
}

func inviteEmail(inviterName, shareURL string) (subject, body string) {
	subject = fmt.Sprintf("%s invited you to bugtrail", inviterName)
	body = fmt.Sprintf("%s wants to track bugs with you.\n\nAccept the invite: %s\n\nThe link expires in 7 days.", inviterName, shareURL)
	return subject, body
}
