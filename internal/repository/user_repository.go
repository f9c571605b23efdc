package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"contactbook/internal/database"
	"contactbook/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already registered")
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, password_hash, confirmed, avatar, role, created_at`

// UserRepository bounds every statement by opTimeout. A zero timeout leaves
// the caller's deadline as the only limit.
type UserRepository struct {
	db      database.DBTX
	timeout time.Duration
}

func NewUserRepository(db database.DBTX, opTimeout time.Duration) *UserRepository {
	return &UserRepository{db: db, timeout: opTimeout}
}

// WithTx runs fn against a repository bound to one transaction.
func (r *UserRepository) WithTx(ctx context.Context, fn func(tx *UserRepository) error) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&UserRepository{db: tx, timeout: r.timeout})
	})
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, username, email, password_hash, confirmed, avatar, role, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW()
		)
	`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Confirmed,
		user.Avatar,
		user.Role,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "users_username_key" {
				return ErrUsernameTaken
			}
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return scanUser(r.db.QueryRow(ctx, query, username))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// ConfirmEmail flips the confirmed flag. It reports false when the user was
// already confirmed.
func (r *UserRepository) ConfirmEmail(ctx context.Context, email string) (bool, error) {
	const query = `UPDATE users SET confirmed = TRUE WHERE email = $1 AND confirmed = FALSE`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, query, email)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2 WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id string, avatar string) error {
	const query = `UPDATE users SET avatar = $2 WHERE id = $1`
	return r.execOne(ctx, query, id, avatar)
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	const query = `UPDATE users SET role = $2 WHERE id = $1`
	return r.execOne(ctx, query, id, role)
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Confirmed,
		&user.Avatar,
		&user.Role,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
