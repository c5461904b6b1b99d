// Package user holds the identity records and the login, registration and
// session flows built on them.
package user

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const AggregateType = "User"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"

	DefaultCountry = "Unknown"
	DefaultGender  = "other"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrEmailTaken      = errors.New("email already registered")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrInvalidStatus   = errors.New("status must be 'active' or 'blocked'")
	ErrInvalidRole     = errors.New("role must be 'admin' or 'customer'")
	ErrBadCredentials  = errors.New("invalid email or password")
	ErrAccountBlocked  = errors.New("account blocked")
	ErrMissingRequired = errors.New("username, email and password are required")
)

// Status is the canonical account status.
type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// ParseStatus accepts "active" or "blocked" in any case.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(s)) {
	case StatusActive:
		return StatusActive, nil
	case StatusBlocked:
		return StatusBlocked, nil
	default:
		return "", ErrInvalidStatus
	}
}

// StatusInput is the `active` alias of a user update, which clients send
// either as a string or as a boolean.
type StatusInput interface {
	Resolve() Status
}

// StringStatus maps "blocked" (any case) to blocked and anything else to active.
type StringStatus string

func (s StringStatus) Resolve() Status {
	if strings.EqualFold(string(s), string(StatusBlocked)) {
		return StatusBlocked
	}
	return StatusActive
}

// BooleanActive maps true to active and false to blocked.
type BooleanActive bool

func (b BooleanActive) Resolve() Status {
	if b {
		return StatusActive
	}
	return StatusBlocked
}

// DecodeStatusInput reads a raw `active` value. Values that are neither a
// string nor a boolean are ignored.
func DecodeStatusInput(raw json.RawMessage) StatusInput {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return StringStatus(s)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return BooleanActive(b)
	}
	return nil
}

// User is the stored identity record. Password holds either a legacy plain
// value or a bcrypt hash.
type User struct {
	ID        string    `json:"_id,omitempty"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	ImageURL  *string   `json:"image_url,omitempty"`
	Role      string    `json:"role"`
	Country   string    `json:"country"`
	Gender    string    `json:"gender"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Blocked reports whether the account may not log in.
func (u *User) Blocked() bool {
	return u.Status == StatusBlocked
}

// PublicUser is the projection returned to clients.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
}

// Fields is a partial user update. Nil fields are left unchanged.
type Fields struct {
	Username  *string
	Email     *string
	Password  *string
	FullName  *string
	Address   *string
	Phone     *string
	ImageURL  *string
	Role      *string
	Country   *string
	Gender    *string
	Status    *Status
	UpdatedAt time.Time
}

// Store is the identity store.
//
// FindByEmail and FindByID return ErrUserNotFound when nothing matches;
// FindByID and UpdateFields return ErrInvalidUserID for unparsable ids.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	ExistsWithUsername(ctx context.Context, username string) (bool, error)
	Insert(ctx context.Context, u *User) (string, error)
	UpdateFields(ctx context.Context, id string, f Fields) (matched bool, err error)
}
