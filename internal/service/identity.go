package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"contactbook/internal/models"
	"contactbook/internal/repository"
	"contactbook/internal/security"
)

// IdentityResolver turns a bearer access token into the user it was issued
// for. The cached snapshot is preferred; the database is consulted on a miss
// and the snapshot is written back.
type IdentityResolver struct {
	tokens      *security.TokenCodec
	users       UserStore
	sessions    SessionStore
	snapshotTTL time.Duration
	log         zerolog.Logger
}

func NewIdentityResolver(tokens *security.TokenCodec, users UserStore, sessions SessionStore, snapshotTTL time.Duration, log zerolog.Logger) *IdentityResolver {
	return &IdentityResolver{
		tokens:      tokens,
		users:       users,
		sessions:    sessions,
		snapshotTTL: snapshotTTL,
		log:         log,
	}
}

func (r *IdentityResolver) Resolve(ctx context.Context, bearer string) (models.User, error) {
	claims, err := r.tokens.DecodeAccess(bearer)
	if err != nil {
		r.log.Debug().Err(err).Msg("access token rejected")
		return models.User{}, ErrCredentialsInvalid
	}

	snapshot, ok, err := r.sessions.GetUserSnapshot(ctx, claims.UserID)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", claims.UserID).Msg("snapshot lookup failed")
	}
	if ok && snapshot.Valid() && snapshot.ID == claims.UserID {
		return snapshot.User(), nil
	}

	user, err := r.users.FindByUsername(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrCredentialsInvalid
		}
		return models.User{}, err
	}
	if user.ID != claims.UserID {
		r.log.Warn().Str("user_id", claims.UserID).Str("username", claims.Username).Msg("token subject does not match user id")
		return models.User{}, ErrCredentialsInvalid
	}

	if err := r.sessions.SetUserSnapshot(ctx, user.Snapshot(), r.snapshotTTL); err != nil {
		r.log.Warn().Err(err).Str("user_id", user.ID).Msg("snapshot store failed")
	}
	return user, nil
}

func IsAdmin(user models.User) bool {
	return user.IsAdmin()
}
