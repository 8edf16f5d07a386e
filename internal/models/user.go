package models

import "time"

// User represents an application user stored in the users table. A user is
// created on first successful Google login and updated on every subsequent
// one; records are never deleted by the gateway.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Name         *string    `db:"name" json:"name,omitempty"`
	Picture      *string    `db:"picture" json:"picture,omitempty"`
	RefreshToken *string    `db:"refresh_token" json:"-"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserProfile is the public view of a user. The stored refresh token and the
// internal id are never exposed.
type UserProfile struct {
	Email   string  `json:"email"`
	Name    *string `json:"name,omitempty"`
	Picture *string `json:"picture,omitempty"`
}

// Profile projects the public fields of a user.
func (u *User) Profile() *UserProfile {
	return &UserProfile{Email: u.Email, Name: u.Name, Picture: u.Picture}
}
