package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// UsersWriteRepo owns the authoritative users table. The unique index on
// email is the real enforcement for duplicate signups; callers only pre-check.
type UsersWriteRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersWriteRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersWriteRepo {
	return &UsersWriteRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *UsersWriteRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *UsersWriteRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := repo.observe("users.get_by_email", func() error {
		return repo.pool.QueryRow(
			ctx,
			`SELECT id, name, email, password_hash, display_name, created_at, updated_at
			 FROM users
			 WHERE email = $1`,
			email,
		).Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&u.PasswordHash,
			&u.DisplayName,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (repo *UsersWriteRepo) Create(ctx context.Context, u user.User) error {
	err := repo.observe("users.create", func() error {
		_, e := repo.pool.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, display_name, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.DisplayName, u.CreatedAt, u.UpdatedAt,
		)
		return e
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.ErrEmailTaken
		}

		return err
	}

	return nil
}
