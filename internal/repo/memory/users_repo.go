package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/userhub/internal/domain/user"
)

// UsersWriteRepo is an in-memory write store with the same conditional-insert
// semantics as the postgres repo: Create is atomic under the mutex and the
// email check happens inside the same critical section, so concurrent
// duplicates lose the race cleanly.
type UsersWriteRepo struct {
	mu      sync.Mutex
	byID    map[string]user.User
	byEmail map[string]string // email -> id
}

func NewUsersWriteRepo() *UsersWriteRepo {
	return &UsersWriteRepo{
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersWriteRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[email]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return r.byID[id], nil
}

func (r *UsersWriteRepo) Create(ctx context.Context, u user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, taken := r.byEmail[u.Email]

	if taken {
		return user.ErrEmailTaken
	}

	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return nil
}

// Count reports the number of stored write records. Test helper.

func (r *UsersWriteRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byID)
}

// UsersReadRepo is the in-memory read model, written only through Upsert.
type UsersReadRepo struct {
	mu   sync.Mutex
	byID map[string]user.ReadModel
}

func NewUsersReadRepo() *UsersReadRepo {
	return &UsersReadRepo{
		byID: make(map[string]user.ReadModel),
	}
}

func (r *UsersReadRepo) GetByID(ctx context.Context, id string) (user.ReadModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.byID[id]

	if !ok {
		return user.ReadModel{}, user.ErrNotFound
	}

	return rm, nil
}

func (r *UsersReadRepo) Upsert(ctx context.Context, rm user.ReadModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[rm.ID] = rm

	return nil
}
