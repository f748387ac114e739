package users

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/userhub/internal/domain/user"
)

// QueryService answers point lookups from the read model only. It never
// touches the write store or the idempotency cache.
type QueryService struct {
	reads ReadStore
	log   *slog.Logger
}

func NewQueryService(reads ReadStore, log *slog.Logger) *QueryService {
	return &QueryService{
		reads: reads,
		log:   log,
	}
}

// ByID returns the read-model record, or user.ErrNotFound. Absence is a
// normal outcome, not a failure.

func (s *QueryService) ByID(ctx context.Context, id string) (user.ReadModel, error) {
	rm, err := s.reads.GetByID(ctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.log.WarnContext(ctx, "user not found", "user_id", id)
		}

		return user.ReadModel{}, err
	}

	s.log.DebugContext(ctx, "user retrieved", "user_id", id)

	return rm, nil
}
