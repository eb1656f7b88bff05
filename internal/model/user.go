package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles assignable to a user. Route-level authorization compares the
// attached user's role against a declarative allowed set.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

// User is a document in the `users` collection. The password hash and the
// soft-delete flag never appear in JSON output; PasswordConfirm is a
// write-only input field that is never persisted. A unique index on email
// enforces one account per address.
//
// Fields:
//  Password          – bcrypt hash at rest, plaintext only while binding input.
//  PasswordConfirm   – must equal Password on signup, dropped before insert.
//  PasswordChangedAt – compared against token issue time to invalidate stale JWTs.
//  PasswordResetToken / PasswordResetExpires – SHA-256 hash and expiry of the
//                      active reset token, cleared once used or delivery fails.
//  Active            – soft delete; inactive users are excluded from queries.
type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name                 string             `bson:"name" json:"name" validate:"required"`
	Email                string             `bson:"email" json:"email" validate:"required,email"`
	Photo                string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Role                 string             `bson:"role" json:"role" validate:"required,oneof=user guide lead-guide admin"`
	Password             string             `bson:"password" json:"-"`
	PasswordConfirm      string             `bson:"-" json:"-"`
	PasswordChangedAt    time.Time          `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string             `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires time.Time          `bson:"passwordResetExpires,omitempty" json:"-"`
	Active               bool               `bson:"active" json:"-"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
}

// Summary is the reduced user shape embedded in populated responses,
// e.g. a review's author or a tour's guides. Only public fields.
type Summary struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Photo string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Role  string             `bson:"role,omitempty" json:"role,omitempty"`
}

// NormalizeEmail lowercases and trims an address. Every write and lookup
// goes through this, so the unique index on email is effectively
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PasswordChangedAfter reports whether the user's password was changed
// after the given token issue time. Tokens issued before a password change
// are stale; there is no explicit revocation list.
func (u *User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt.IsZero() {
		return false
	}
	return u.PasswordChangedAt.After(issuedAt)
}
