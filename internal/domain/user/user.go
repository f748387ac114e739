package user

import (
	"errors"
	"time"
)

// User is the authoritative write-model record. This is the system of record;
// the read model is derived from it and rebuildable.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ReadModel is the denormalized record served to queries. Written only by the
// projector.
type ReadModel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// if the email already belongs to an existing user
var ErrEmailTaken = errors.New("email already in use")

var ErrNotFound = errors.New("user not found")

// the write committed but the read-model copy did not
var ErrProjectionFailed = errors.New("read model projection failed")

// password failed the strength policy
var ErrWeakPassword = errors.New("password does not meet strength requirements")

type SignupRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName" binding:"required,min=1,max=255"`
}
