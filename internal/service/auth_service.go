package service

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/rs/zerolog"

	"contactbook/internal/config"
	"contactbook/internal/ids"
	"contactbook/internal/mail"
	"contactbook/internal/models"
	"contactbook/internal/repository"
	"contactbook/internal/security"
)

const mailEnqueueTimeout = 5 * time.Second

type AuthService struct {
	users    UserStore
	sessions SessionStore
	tokens   *security.TokenCodec
	mailer   Mailer
	cfg      *config.AppConfig
	log      zerolog.Logger

	hashPassword func(string) (string, error)
}

func NewAuthService(
	users UserStore,
	sessions SessionStore,
	tokens *security.TokenCodec,
	mailer Mailer,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:        users,
		sessions:     sessions,
		tokens:       tokens,
		mailer:       mailer,
		cfg:          cfg,
		log:          log,
		hashPassword: security.HashPassword,
	}
}

// usernamePattern allows dot-separated runs of letters, digits, '_' and '-'.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.Length(3, 50), validation.Match(usernamePattern)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 50), is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 128)),
	)
}

type LoginInput struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
}

type ResetPasswordInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in ResetPasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 128)),
	)
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GravatarURL is the default avatar for a freshly registered user.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(normalizeEmail(email)))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:])
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)
	if err := input.Validate(); err != nil {
		return models.User{}, validationError(err)
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return models.User{}, ErrEmailExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, err
	}

	if _, err := s.users.FindByUsername(ctx, input.Username); err == nil {
		return models.User{}, ErrUsernameExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, err
	}

	passwordHash, err := s.hashPassword(input.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           ids.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Avatar:       GravatarURL(input.Email),
		Role:         models.UserRoleUser,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.users.RunInTx(ctx, func(tx UserStore) error {
		return tx.Create(ctx, user)
	})
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		return models.User{}, ErrEmailExists
	case errors.Is(err, repository.ErrUsernameTaken):
		return models.User{}, ErrUsernameExists
	case err != nil:
		return models.User{}, err
	}

	if err := s.sendConfirmation(user); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("registration email not sent")
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (TokenPair, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := input.Validate(); err != nil {
		return TokenPair{}, validationError(err)
	}

	user, err := s.users.FindByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return TokenPair{}, ErrWrongCredentials
		}
		return TokenPair{}, err
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
	}
	if !ok {
		return TokenPair{}, ErrWrongCredentials
	}

	if !user.Confirmed {
		return TokenPair{}, ErrEmailNotConfirmed
	}

	accessToken, err := s.tokens.Issue(security.AccessClaims{Username: user.Username, UserID: user.ID}, 0)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.tokens.Issue(security.RefreshClaims{Username: user.Username, UserID: user.ID}, 0)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	refreshTTL := s.tokens.TTL(security.KindRefresh)
	if err := s.sessions.SetUserSnapshot(ctx, user.Snapshot(), refreshTTL); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("snapshot store failed")
	}
	if err := s.sessions.SetRefreshToken(ctx, user.ID, refreshToken, refreshTTL); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("refresh token store failed")
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}, nil
}

// Refresh issues a new access token for a refresh token that is still the
// one stored for its user. The refresh token itself is returned unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.DecodeRefresh(refreshToken)
	if err != nil {
		s.log.Debug().Err(err).Msg("refresh token rejected")
		return TokenPair{}, ErrCredentialsInvalid
	}

	stored, ok, err := s.sessions.GetRefreshToken(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("load refresh token: %w", err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		return TokenPair{}, ErrTokenRevoked
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			if err := s.sessions.DeleteRefreshToken(ctx, claims.UserID); err != nil {
				s.log.Warn().Err(err).Str("user_id", claims.UserID).Msg("orphan refresh token not deleted")
			}
			return TokenPair{}, ErrUserNotFound
		}
		return TokenPair{}, err
	}

	accessToken, err := s.tokens.Issue(security.AccessClaims{Username: user.Username, UserID: user.ID}, 0)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, user models.User) string {
	if err := s.sessions.DeleteSession(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("session delete failed")
	}
	return MsgLogout
}

// RequestEmail re-sends the confirmation link to an unconfirmed account. The
// reply is the same whether or not the address is registered.
func (s *AuthService) RequestEmail(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return "", validationError(fmt.Errorf("email: %w", err))
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return MsgEmailCheck, nil
	case err != nil:
		return "", err
	}

	if !user.Confirmed {
		if err := s.sendConfirmation(user); err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("confirmation email not sent")
		}
	}
	return MsgEmailCheck, nil
}

func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.DecodeEmail(token)
	if err != nil {
		s.log.Debug().Err(err).Msg("confirmation token rejected")
		return "", ErrWrongToken
	}

	user, err := s.users.FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrVerification
		}
		return "", err
	}
	if user.Confirmed {
		return MsgEmailAlreadyConfirmed, nil
	}

	var changed bool
	if err := s.users.RunInTx(ctx, func(tx UserStore) error {
		var err error
		changed, err = tx.ConfirmEmail(ctx, user.Email)
		return err
	}); err != nil {
		return "", err
	}
	if !changed {
		return MsgEmailAlreadyConfirmed, nil
	}
	return MsgEmailConfirmed, nil
}

// ResetPassword emails a link carrying the hash of the new password. The
// password only changes once the link is followed.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) (string, error) {
	input.Email = normalizeEmail(input.Email)
	if err := input.Validate(); err != nil {
		return "", validationError(err)
	}

	user, err := s.users.FindByEmail(ctx, input.Email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return MsgEmailCheck, nil
	case err != nil:
		return "", err
	}
	if !user.Confirmed {
		return "", ErrResetNotConfirmed
	}

	passwordHash, err := s.hashPassword(input.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	token, err := s.tokens.Issue(security.ResetClaims{Email: user.Email, PasswordHash: passwordHash}, 0)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}

	link := s.link("api/auth/confirm_reset_password/", token)
	s.enqueue(mail.ResetPasswordMessage(user.Email, user.Username, link), user.ID)
	return MsgEmailCheck, nil
}

func (s *AuthService) ConfirmResetPassword(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.DecodeReset(token)
	if err != nil {
		s.log.Debug().Err(err).Msg("reset token rejected")
		return "", ErrWrongToken
	}

	user, err := s.users.FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	if err := s.users.RunInTx(ctx, func(tx UserStore) error {
		return tx.UpdatePassword(ctx, user.ID, claims.PasswordHash)
	}); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	// clear sessions only after the new hash is stored
	if err := s.sessions.DeleteSession(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("session delete failed")
	}
	return MsgPasswordReset, nil
}

func (s *AuthService) sendConfirmation(user models.User) error {
	token, err := s.tokens.Issue(security.EmailClaims{Email: user.Email}, 0)
	if err != nil {
		return fmt.Errorf("issue confirmation token: %w", err)
	}
	link := s.link("api/auth/confirmed_email/", token)
	s.enqueue(mail.RegistrationMessage(user.Email, user.Username, link), user.ID)
	return nil
}

func (s *AuthService) link(path, token string) string {
	return strings.TrimRight(s.cfg.HTTP.BaseURL, "/") + "/" + path + token
}

// enqueue hands the message to the mail stream without blocking the caller.
func (s *AuthService) enqueue(msg mail.Message, userID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailEnqueueTimeout)
		defer cancel()
		if err := s.mailer.Enqueue(ctx, msg); err != nil {
			s.log.Error().
				Err(err).
				Str("user_id", userID).
				Str("template", string(msg.Template)).
				Msg("mail enqueue failed")
		}
	}()
}
