package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/rs/zerolog"

	"contactbook/internal/ids"
	"contactbook/internal/media/sniffer"
	"contactbook/internal/models"
	"contactbook/internal/repository"
	"contactbook/internal/security"
	"contactbook/internal/storage"
)

type UserService struct {
	users         UserStore
	sessions      SessionStore
	avatars       storage.AvatarStore
	maxAvatarSize int64
	log           zerolog.Logger

	hashPassword func(string) (string, error)
}

func NewUserService(users UserStore, sessions SessionStore, avatars storage.AvatarStore, maxAvatarSize int64, log zerolog.Logger) *UserService {
	return &UserService{
		users:         users,
		sessions:      sessions,
		avatars:       avatars,
		maxAvatarSize: maxAvatarSize,
		log:           log,
		hashPassword:  security.HashPassword,
	}
}

func (s *UserService) Me(user models.User) models.UserSnapshot {
	return user.Snapshot()
}

// UpdateAvatar stores the uploaded image under avatars/{username}.{ext},
// replacing any previous one, and records its URL on the user.
func (s *UserService) UpdateAvatar(ctx context.Context, user models.User, file io.Reader) (models.UserSnapshot, error) {
	if file == nil {
		return models.UserSnapshot{}, ErrUnsupportedMedia
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxAvatarSize+1))
	if err != nil {
		return models.UserSnapshot{}, fmt.Errorf("read avatar: %w", err)
	}
	if int64(len(data)) > s.maxAvatarSize {
		return models.UserSnapshot{}, ErrAvatarTooLarge
	}

	media, err := sniffer.DetectHead(data)
	if err != nil {
		return models.UserSnapshot{}, ErrUnsupportedMedia
	}

	key := fmt.Sprintf("avatars/%s.%s", user.Username, media.Extension())
	url, err := s.avatars.Put(ctx, key, bytes.NewReader(data), int64(len(data)), media.MIME)
	if err != nil {
		return models.UserSnapshot{}, fmt.Errorf("upload avatar: %w", err)
	}

	if err := s.users.RunInTx(ctx, func(tx UserStore) error {
		return tx.UpdateAvatar(ctx, user.ID, url)
	}); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.UserSnapshot{}, ErrUserNotFound
		}
		return models.UserSnapshot{}, err
	}

	if err := s.sessions.DeleteUserSnapshot(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("snapshot delete failed")
	}

	s.log.Info().Str("user_id", user.ID).Str("key", key).Int("size", len(data)).Msg("avatar updated")

	user.Avatar = url
	return user.Snapshot(), nil
}

// RevokeSessions drops the cached snapshot and refresh token of another
// user. Only admins may call it.
func (s *UserService) RevokeSessions(ctx context.Context, actor models.User, targetID string) error {
	if !IsAdmin(actor) {
		return ErrForbidden
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.sessions.DeleteSession(ctx, target.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	s.log.Info().Str("user_id", target.ID).Str("admin_id", actor.ID).Msg("sessions revoked")
	return nil
}

type AdminInput struct {
	Username string
	Email    string
	Password string
}

func (in AdminInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.Length(3, 50), validation.Match(usernamePattern)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 128)),
	)
}

// EnsureAdmin promotes an existing user to admin, or creates a confirmed
// admin account when the username is free. It reports whether a user was
// created.
func (s *UserService) EnsureAdmin(ctx context.Context, input AdminInput) (models.User, bool, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)

	existing, err := s.users.FindByUsername(ctx, input.Username)
	if err == nil {
		if err := s.users.RunInTx(ctx, func(tx UserStore) error {
			return tx.UpdateRole(ctx, existing.ID, models.UserRoleAdmin)
		}); err != nil {
			return models.User{}, false, err
		}
		if err := s.sessions.DeleteUserSnapshot(ctx, existing.ID); err != nil {
			s.log.Warn().Err(err).Str("user_id", existing.ID).Msg("snapshot delete failed")
		}
		existing.Role = models.UserRoleAdmin
		existing.PasswordHash = ""
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, false, err
	}

	if err := input.Validate(); err != nil {
		return models.User{}, false, validationError(err)
	}

	passwordHash, err := s.hashPassword(input.Password)
	if err != nil {
		return models.User{}, false, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           ids.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Confirmed:    true,
		Avatar:       GravatarURL(input.Email),
		Role:         models.UserRoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.users.RunInTx(ctx, func(tx UserStore) error {
		return tx.Create(ctx, user)
	})
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		return models.User{}, false, ErrEmailExists
	case errors.Is(err, repository.ErrUsernameTaken):
		return models.User{}, false, ErrUsernameExists
	case err != nil:
		return models.User{}, false, err
	}

	user.PasswordHash = ""
	return user, true, nil
}
