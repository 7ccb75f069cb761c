// Package postgres provides a pgx-backed implementation of the
// authkit.UserStore contract against a single users table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confreg/authkit"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the table this store reads and writes. Callers run it through
// their migration tooling of choice.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL,
	gender        TEXT NOT NULL,
	nationality   TEXT NOT NULL DEFAULT '',
	organization  TEXT NOT NULL DEFAULT '',
	position      TEXT NOT NULL DEFAULT '',
	birth_date    DATE NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store implements authkit.UserStore on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. The pool's lifecycle stays with the caller.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect dials the database and verifies the connection.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool. Only call it when the Store owns the pool, i.e.
// it came from Connect.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the users table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const userColumns = `id, first_name, last_name, gender, nationality, organization, position, birth_date, email, password_hash`

func scanUser(row pgx.Row) (*authkit.User, error) {
	var (
		u      authkit.User
		gender string
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &gender, &u.Nationality,
		&u.Organization, &u.Position, &u.BirthDate, &u.Email, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Gender = authkit.Gender(gender)
	return &u, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*authkit.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*authkit.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

func (s *Store) Create(ctx context.Context, fields authkit.UserFields) (*authkit.User, error) {
	id := uuid.NewString()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+userColumns,
		id, fields.FirstName, fields.LastName, string(fields.Gender),
		fields.Nationality, fields.Organization, fields.Position,
		fields.BirthDate, fields.Email, fields.PasswordHash)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, authkit.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Update rewrites the mutable fields. An empty PasswordHash keeps the
// stored hash, matching the authkit.UserStore contract.
func (s *Store) Update(ctx context.Context, id string, fields authkit.UserFields) (*authkit.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET
			first_name = $2, last_name = $3, gender = $4, nationality = $5,
			organization = $6, position = $7, birth_date = $8, email = $9,
			password_hash = CASE WHEN $10 = '' THEN password_hash ELSE $10 END,
			updated_at = $11
		WHERE id = $1
		RETURNING `+userColumns,
		id, fields.FirstName, fields.LastName, string(fields.Gender),
		fields.Nationality, fields.Organization, fields.Position,
		fields.BirthDate, fields.Email, fields.PasswordHash, time.Now())

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, authkit.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

var _ authkit.UserStore = (*Store)(nil)
