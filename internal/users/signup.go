package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/security"
)

// WriteStore owns the authoritative user records. Create must enforce email
// uniqueness and report a violation as user.ErrEmailTaken; that constraint,
// not the pre-check in Signup, is the real arbiter for concurrent signups.
type WriteStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) error
}

// PasswordHasher is an opaque one-way transform. Algorithm choice lives with
// the implementation.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

type SignupService struct {
	writes    WriteStore
	projector *Projector
	hasher    PasswordHasher
	minLen    int
	log       *slog.Logger
	prom      *observability.Prom
}

func NewSignupService(writes WriteStore, projector *Projector, hasher PasswordHasher, passwordMinLength int, log *slog.Logger, prom *observability.Prom) *SignupService {
	if passwordMinLength <= 0 {
		passwordMinLength = 8
	}

	return &SignupService{
		writes:    writes,
		projector: projector,
		hasher:    hasher,
		minLen:    passwordMinLength,
		log:       log,
		prom:      prom,
	}
}

func (s *SignupService) countSignup(status string) {
	if s.prom != nil {
		s.prom.SignupRequests.WithLabelValues(status).Inc()
	}
}

func (s *SignupService) countDuplicate() {
	if s.prom != nil {
		s.prom.SignupDuplicates.Inc()
	}
}

// Signup registers a new user: validate, pre-check the email, hash, write,
// project. On user.ErrProjectionFailed the returned user IS committed; the
// read model is behind and the reconciler will repair it.

func (s *SignupService) Signup(ctx context.Context, req user.SignupRequest) (user.User, error) {
	// pure check, must run before any store access
	err := security.ValidatePasswordStrength(req.Password, s.minLen)

	if err != nil {
		s.countSignup("invalid")

		return user.User{}, fmt.Errorf("%w: %s", user.ErrWeakPassword, err)
	}

	// advisory pre-check; the unique index below is the enforcement point
	_, err = s.writes.GetByEmail(ctx, req.Email)

	if err == nil {
		s.log.WarnContext(ctx, "duplicate signup attempt", "email", req.Email)
		s.countDuplicate()
		s.countSignup("duplicate")

		return user.User{}, user.ErrEmailTaken
	}

	if !errors.Is(err, user.ErrNotFound) {
		s.countSignup("error")

		return user.User{}, err
	}

	hash, err := s.hasher.Hash(req.Password)

	if err != nil {
		s.countSignup("error")

		return user.User{}, err
	}

	u := user.NewFromSignupRequest(req, hash)

	err = s.writes.Create(ctx, u)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			// a concurrent insert won the race between pre-check and insert
			s.log.WarnContext(ctx, "duplicate signup lost insert race", "email", req.Email)
			s.countDuplicate()
			s.countSignup("duplicate")

			return user.User{}, user.ErrEmailTaken
		}

		s.countSignup("error")

		return user.User{}, err
	}

	err = s.projector.Project(ctx, user.ReadModelOf(u))

	if err != nil {
		// the write is durable; never roll it back. Surface the drift so
		// operators can reconcile.
		s.log.ErrorContext(ctx, "projection to read model failed", "user_id", u.ID, "err", err)
		s.countSignup("projection_failed")

		return u, fmt.Errorf("%w: %v", user.ErrProjectionFailed, err)
	}

	s.log.InfoContext(ctx, "user created", "user_id", u.ID, "email", u.Email)
	s.countSignup("success")

	return u, nil
}
