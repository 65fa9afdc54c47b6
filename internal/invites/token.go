package invites

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid   = errors.New("invite token invalid or expired")
	ErrTokenMalformed = errors.New("invite token missing required claims")
)

const purposeFriendInvite = "friend_invite"

// Claims are the signed contents of an invite token: who is invited and
// by whom. Expiry rides along as a standard JWT claim.
type Claims struct {
	InvitedEmail string
	InvitedBy    string
}

// NewToken mints a signed invite token addressed to inviteeEmail.
func NewToken(inviteeEmail, inviterEmail, secret string, ttl time.Duration) (string, error) {
	const op = "invites.NewToken"

	claims := jwt.MapClaims{
		"invited_email": inviteeEmail,
		"invited_by":    inviterEmail,
		"purpose":       purposeFriendInvite,
		"iat":           time.Now().Unix(),
		"exp":           time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// ParseToken verifies signature and expiry, then checks the claim set.
// Signature or expiry failures come back as ErrTokenInvalid; a verified
// token lacking the invite claims is ErrTokenMalformed.
func ParseToken(tokenStr, secret string) (Claims, error) {
	const op = "invites.ParseToken"

	claims := jwt.MapClaims{}

	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method", op)
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrTokenInvalid
	}

	if purpose, ok := claims["purpose"].(string); !ok || purpose != purposeFriendInvite {
		return Claims{}, ErrTokenMalformed
	}

	invitedEmail, ok := claims["invited_email"].(string)
	if !ok || invitedEmail == "" {
		return Claims{}, ErrTokenMalformed
	}

	invitedBy, ok := claims["invited_by"].(string)
	if !ok || invitedBy == "" {
		return Claims{}, ErrTokenMalformed
	}

	return Claims{
		InvitedEmail: invitedEmail,
		InvitedBy:    invitedBy,
	}, nil
}
