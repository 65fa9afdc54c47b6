package models

import "time"

type User struct {
	ID         int64
	Email      string
	Name       string
	PassHash   []byte
	PictureURL string
}

// Invite is the persisted side of an invitation token. The claims
// (invited email, inviter, expiry) live inside the signed token itself;
// the record exists only to enforce single use.
type Invite struct {
	Token  string     `json:"token"`
	Used   bool       `json:"used"`
	UsedAt *time.Time `json:"used_at,omitempty"`
}

// FriendInfo is the projection of a friend returned to clients.
type FriendInfo struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	PictureURL string `json:"picture_url,omitempty"`
}

// EmailMessage is the payload published to the notifications queue and
// consumed by the mail worker.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Profile is what an identity provider hands back after a successful
// authorization-code exchange.
type Profile struct {
	Email      string
	Name       string
	PictureURL string
}
