package user

import (
	"time"

	"github.com/google/uuid"
)

// A factory to build a User from the incoming DTO plus the already-hashed
// password. The id is generated here; the caller never supplies one.

func NewFromSignupRequest(req SignupRequest, passwordHash string) User {
	now := time.Now().UTC()

	return User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		DisplayName:  req.DisplayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ReadModelOf derives the read-model row for a committed user.

func ReadModelOf(u User) ReadModel {
	return ReadModel{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}
