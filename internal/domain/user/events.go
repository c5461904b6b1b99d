package user

import "time"

const (
	EventUserRegistered  = "UserRegistered"
	EventUserUpdated     = "UserUpdated"
	EventPasswordChanged = "PasswordChanged"
	EventStatusChanged   = "UserStatusChanged"
)

type UserRegistered struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	RegisteredAt time.Time `json:"registered_at"`
}

type UserUpdated struct {
	UserID    string    `json:"user_id"`
	Fields    []string  `json:"fields"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PasswordChanged struct {
	UserID    string    `json:"user_id"`
	ChangedAt time.Time `json:"changed_at"`
}

type UserStatusChanged struct {
	UserID    string    `json:"user_id"`
	Status    Status    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}
