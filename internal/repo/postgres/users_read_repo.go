package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsersReadRepo serves point lookups from the denormalized read model and is
// the only writer of that table (via Upsert, which the projector calls).
type UsersReadRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersReadRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersReadRepo {
	return &UsersReadRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *UsersReadRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *UsersReadRepo) GetByID(ctx context.Context, id string) (user.ReadModel, error) {
	var rm user.ReadModel

	err := repo.observe("users_read.get_by_id", func() error {
		return repo.pool.QueryRow(
			ctx,
			`SELECT id, name, email, display_name, created_at
			 FROM users_read_model
			 WHERE id = $1`,
			id,
		).Scan(
			&rm.ID,
			&rm.Name,
			&rm.Email,
			&rm.DisplayName,
			&rm.CreatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ReadModel{}, user.ErrNotFound
		}

		return user.ReadModel{}, err
	}

	return rm, nil
}

// Upsert writes the projection keyed by id, so re-projecting the same user
// never creates a second row.

func (repo *UsersReadRepo) Upsert(ctx context.Context, rm user.ReadModel) error {
	return repo.observe("users_read.upsert", func() error {
		_, err := repo.pool.Exec(ctx,
			`INSERT INTO users_read_model (id, name, email, display_name, created_at)
			 VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				email = EXCLUDED.email,
				display_name = EXCLUDED.display_name,
				created_at = EXCLUDED.created_at`,
			rm.ID, rm.Name, rm.Email, rm.DisplayName, rm.CreatedAt,
		)
		return err
	})
}

// MissingFromReadModel lists write-model ids that have no read-model row yet.
// Used by the reconciliation sweep.

func (repo *UsersReadRepo) MissingFromReadModel(ctx context.Context, limit int) (users []user.User, err error) {
	var rows pgx.Rows

	err = repo.observe("users_read.missing", func() error {
		rows, err = repo.pool.Query(ctx,
			`SELECT u.id, u.name, u.email, u.password_hash, u.display_name, u.created_at, u.updated_at
			 FROM users u
			 LEFT JOIN users_read_model r ON r.id = u.id
			 WHERE r.id IS NULL
			 ORDER BY u.created_at ASC
			 LIMIT $1`,
			limit,
		)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	users = make([]user.User, 0)

	for rows.Next() {
		var u user.User

		e := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)

		if e != nil {
			err = e
			return
		}
		users = append(users, u)
	}

	err = rows.Err()

	return
}
