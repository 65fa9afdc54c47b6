package acceptinvite

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bugtrail/internal/invites"
	"bugtrail/internal/middleware/authn"
	"bugtrail/internal/models"
	"bugtrail/internal/session"
	"bugtrail/internal/storage"
	"bugtrail/internal/tokens"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tokenSecret  = "handler-test-token-secret"
	inviteSecret = "handler-test-invite-secret"
)

type fakeInviteStore struct {
	mu      sync.Mutex
	invites map[string]models.Invite
}

func (s *fakeInviteStore) SaveInvite(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[token] = models.Invite{Token: token}
	return nil
}

func (s *fakeInviteStore) Invite(_ context.Context, token string) (models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[token]
	if !ok {
		return models.Invite{}, storage.ErrInviteNotFound
	}
	return inv, nil
}

func (s *fakeInviteStore) MarkInviteUsed(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.invites[token]
	now := time.Now()
	inv.Used = true
	inv.UsedAt = &now
	s.invites[token] = inv
	return nil
}

type fakeUsers struct {
	users []models.User
}

func (f *fakeUsers) UserByID(_ context.Context, id int64) (models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeUsers) UserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

type fakeGraph struct {
	mu    sync.Mutex
	edges map[[2]int64]bool
}

func (g *fakeGraph) Connect(_ context.Context, a, b int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[[2]int64{a, b}] = true
	g.edges[[2]int64{b, a}] = true
	return nil
}

type noopSender struct{}

func (noopSender) Send(_ context.Context, _, _, _ string) error { return nil }

type env struct {
	handler http.Handler
	store   *fakeInviteStore
	graph   *fakeGraph
	tokens  *tokens.Service
	service *invites.Service
}

func newEnv(t *testing.T, users ...models.User) *env {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := &fakeInviteStore{invites: map[string]models.Invite{}}
	graph := &fakeGraph{edges: map[[2]int64]bool{}}

	service := invites.New(log, store, &fakeUsers{users: users}, graph, noopSender{}, inviteSecret, time.Hour, "https://bugtrail.test", 100)

	tokenService := tokens.New(tokenSecret, 15*time.Minute, 7*24*time.Hour)
	cookies := session.NewCookieManager(15*time.Minute, 7*24*time.Hour, false)

	gate := authn.New(log, tokenService, cookies)

	return &env{
		handler: gate(New(log, service)),
		store:   store,
		graph:   graph,
		tokens:  tokenService,
		service: service,
	}
}

func (e *env) request(t *testing.T, userID int64, body string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(http.MethodPost, "/invites/accept", strings.NewReader(body))

	accessToken, err := e.tokens.IssueAccess(userID)
	require.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: accessToken})

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)

	return rec
}

var (
	alice = models.User{ID: 1, Email: "alice@example.com", Name: "Alice"}
	bob   = models.User{ID: 2, Email: "bob@example.com", Name: "Bob"}
)

func mintPersistedInvite(t *testing.T, e *env, inviter models.User, inviteeEmail string) string {
	t.Helper()

	token, _, err := e.service.CreateInvite(context.Background(), inviter, inviteeEmail)
	require.NoError(t, err)

	return token
}

func TestAccept_Success(t *testing.T) {
	e := newEnv(t, alice, bob)

	token := mintPersistedInvite(t, e, alice, bob.Email)

	rec := e.request(t, bob.ID, `{"token":"`+token+`"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, e.graph.edges[[2]int64{alice.ID, bob.ID}])
}

func TestAccept_EmailMismatch(t *testing.T) {
	carol := models.User{ID: 3, Email: "carol@example.com", Name: "Carol"}
	e := newEnv(t, alice, bob, carol)

	token := mintPersistedInvite(t, e, alice, bob.Email)

	rec := e.request(t, carol.ID, `{"token":"`+token+`"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, e.graph.edges[[2]int64{alice.ID, carol.ID}])
}

func TestAccept_AlreadyUsed(t *testing.T) {
	e := newEnv(t, alice, bob)

	token := mintPersistedInvite(t, e, alice, bob.Email)

	rec := e.request(t, bob.ID, `{"token":"`+token+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.request(t, bob.ID, `{"token":"`+token+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccept_UnknownToken(t *testing.T) {
	e := newEnv(t, alice, bob)

	token, err := invites.NewToken(bob.Email, alice.Email, inviteSecret, time.Hour)
	require.NoError(t, err)

	rec := e.request(t, bob.ID, `{"token":"`+token+`"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccept_MissingToken(t *testing.T) {
	e := newEnv(t, alice, bob)

	rec := e.request(t, bob.ID, `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccept_Unauthenticated(t *testing.T) {
	e := newEnv(t, alice, bob)

	r := httptest.NewRequest(http.MethodPost, "/invites/accept", strings.NewReader(`{"token":"x"}`))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccept_TokenViaQueryParam(t *testing.T) {
	e := newEnv(t, alice, bob)

	token := mintPersistedInvite(t, e, alice, bob.Email)

	r := httptest.NewRequest(http.MethodPost, "/invites/accept?token="+token, nil)

	accessToken, err := e.tokens.IssueAccess(bob.ID)
	require.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: accessToken})

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
}
