package users

import (
	"context"

	"github.com/geocoder89/userhub/internal/domain/user"
)

// ReadStore holds the denormalized records served to queries. Upsert must be
// keyed by id so re-projecting the same user never creates a duplicate row.
type ReadStore interface {
	GetByID(ctx context.Context, id string) (user.ReadModel, error)
	Upsert(ctx context.Context, rm user.ReadModel) error
}

// Projector copies a committed write record into the read store. Pure copy,
// no business logic, safe to re-run.
type Projector struct {
	reads ReadStore
}

func NewProjector(reads ReadStore) *Projector {
	return &Projector{reads: reads}
}

func (p *Projector) Project(ctx context.Context, rm user.ReadModel) error {
	return p.reads.Upsert(ctx, rm)
}
