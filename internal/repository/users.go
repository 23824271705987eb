package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

const userColumns = `id, email, password_hash, name, avatar_key, last_login_ip, is_email_verified, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (domain.User, error) {
	var (
		u         domain.User
		avatarKey sql.NullString
		lastIP    sql.NullString
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&avatarKey,
		&lastIP,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.AvatarKey = domain.NullStringValue(avatarKey)
	u.LastLoginIP = domain.NullStringValue(lastIP)
	return u, nil
}

// CreateUserParams contains the fields needed to insert a user row.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
}

// CreateUser inserts a new user and returns the created row.
func (q *Queries) CreateUser(ctx context.Context, params CreateUserParams) (domain.User, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, name)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		uuid.New(), params.Email, params.PasswordHash, params.Name,
	)
	return scanUser(row)
}

// GetUserByID fetches a user by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail fetches a user by email address.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// UpdateUserProfile updates mutable profile fields.
func (q *Queries) UpdateUserProfile(ctx context.Context, id uuid.UUID, name string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateUserPassword replaces the stored password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateUserLastLoginIP records the source address of the latest login.
func (q *Queries) UpdateUserLastLoginIP(ctx context.Context, id uuid.UUID, ip string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET last_login_ip = $2, updated_at = now() WHERE id = $1`, id, domain.ToNullString(ip))
	return err
}

// SetUserEmailVerified marks the user's email address as verified.
func (q *Queries) SetUserEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET is_email_verified = true, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// requireRow converts a zero-rows-affected result into sql.ErrNoRows so
// callers can map it to a not-found domain error.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
