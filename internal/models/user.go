package models

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is an account that can sign in. Emails are unique ignoring case.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

func (u *User) Actor() *Actor {
	return &Actor{ID: u.ID, Role: u.Role}
}

type RegisterInput struct {
	Email    string
	Name     string
	Password string
}
