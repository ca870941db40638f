package domain

import (
	"strconv"
	"time"
)

// User is an account seen through the chat gateway.
//
// A User is created on the first inbound interaction and is never
// hard-deleted; bans are a flag, not a removal.
type User struct {
	// ID is the stable numeric identity assigned by the chat platform.
	ID int64 `json:"id"`

	// DisplayName is the platform display name at the time of last contact.
	DisplayName string `json:"display_name"`

	// Banned users keep their records but fail every gate check.
	Banned bool `json:"banned"`

	// Admin grants access to catalog and settings mutations.
	Admin bool `json:"admin"`

	// JoinedAt is the first time this user was seen.
	JoinedAt time.Time `json:"joined_at"`

	// Language is the preferred reply language, empty = platform default.
	Language string `json:"language,omitempty"`
}

func (u User) Key() string { return strconv.FormatInt(u.ID, 10) }

// UserPatch mutates the post-creation fields of a User.
// Nil fields are left untouched.
type UserPatch struct {
	DisplayName *string
	Banned      *bool
	Admin       *bool
	Language    *string
}

func (p UserPatch) Apply(u User) User {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.Banned != nil {
		u.Banned = *p.Banned
	}
	if p.Admin != nil {
		u.Admin = *p.Admin
	}
	if p.Language != nil {
		u.Language = *p.Language
	}
	return u
}
