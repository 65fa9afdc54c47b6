package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrWrongTokenType = errors.New("wrong token type")
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Service issues and verifies the two session credentials. It is
// stateless: a token's validity is entirely cryptographic, nothing is
// persisted.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func New(secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (s *Service) IssueAccess(userID int64) (string, error) {
	return s.issue(userID, typeAccess, s.accessTTL)
}

func (s *Service) IssueRefresh(userID int64) (string, error) {
	return s.issue(userID, typeRefresh, s.refreshTTL)
}

// VerifyAccess returns the subject user id of a valid access token.
// ErrTokenExpired is reported separately from ErrTokenInvalid because
// the authentication gate falls back to the refresh credential only on
// expiry, never on a bad signature.
func (s *Service) VerifyAccess(tokenStr string) (int64, error) {
	return s.verify(tokenStr, typeAccess)
}

func (s *Service) VerifyRefresh(tokenStr string) (int64, error) {
	return s.verify(tokenStr, typeRefresh)
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) issue(userID int64, typ string, ttl time.Duration) (string, error) {
	const op = "tokens.issue"

	now := time.Now()

	claims := jwt.MapClaims{
		"sub": userID,
		"typ": typ,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

func (s *Service) verify(tokenStr, wantType string) (int64, error) {
	const op = "tokens.verify"

	claims := jwt.MapClaims{}

	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method", op)
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}

	if !parsed.Valid {
		return 0, ErrTokenInvalid
	}

	typ, ok := claims["typ"].(string)
	if !ok {
		return 0, ErrTokenInvalid
	}
	if typ != wantType {
		return 0, ErrWrongTokenType
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, ErrTokenInvalid
	}

	return int64(sub), nil
}
