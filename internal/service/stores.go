package service

import (
	"context"
	"time"

	"contactbook/internal/mail"
	"contactbook/internal/models"
	"contactbook/internal/repository"
)

// UserStore is the durable user record store. Lookups return
// repository.ErrUserNotFound when nothing matches.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	ConfirmEmail(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	UpdateAvatar(ctx context.Context, id string, avatar string) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	RunInTx(ctx context.Context, fn func(tx UserStore) error) error
}

type SessionStore interface {
	SetUserSnapshot(ctx context.Context, snapshot models.UserSnapshot, ttl time.Duration) error
	GetUserSnapshot(ctx context.Context, id string) (models.UserSnapshot, bool, error)
	DeleteUserSnapshot(ctx context.Context, id string) error
	SetRefreshToken(ctx context.Context, id, token string, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, id string) (string, bool, error)
	DeleteRefreshToken(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
}

type Mailer interface {
	Enqueue(ctx context.Context, msg mail.Message) error
}

type ContactStore interface {
	ListBirthdaysBetween(ctx context.Context, userID string, startDay, endDay int) ([]models.Contact, error)
}

type BirthdayCache interface {
	Get(ctx context.Context, userID string, day time.Time, daygap int) ([]models.Contact, bool, error)
	Set(ctx context.Context, userID string, day time.Time, daygap int, contacts []models.Contact, ttl time.Duration) error
}

// PostgresUsers adapts the pgx repository to UserStore.
type PostgresUsers struct {
	*repository.UserRepository
}

func NewPostgresUsers(repo *repository.UserRepository) PostgresUsers {
	return PostgresUsers{UserRepository: repo}
}

func (p PostgresUsers) RunInTx(ctx context.Context, fn func(tx UserStore) error) error {
	return p.UserRepository.WithTx(ctx, func(tx *repository.UserRepository) error {
		return fn(PostgresUsers{UserRepository: tx})
	})
}
