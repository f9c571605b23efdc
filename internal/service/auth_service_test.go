package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactbook/internal/cache"
	"contactbook/internal/mail"
	"contactbook/internal/security"
)

func TestAuth_Agent007Flow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	input := RegisterInput{Username: "agent007", Email: "agent007@gmail.com", Password: "12345678"}
	user, err := env.auth.Register(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "agent007", user.Username)
	assert.Equal(t, "agent007@gmail.com", user.Email)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, GravatarURL("agent007@gmail.com"), user.Avatar)
	assert.False(t, user.Confirmed)

	msg := env.mailer.next(t)
	assert.Equal(t, mail.TemplateRegistration, msg.Template)
	assert.Equal(t, "agent007@gmail.com", msg.To)
	assert.Equal(t, "agent007", msg.Vars["username"])

	_, err = env.auth.Register(ctx, input)
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = env.auth.Register(ctx, RegisterInput{Username: "agent007", Email: "other@gmail.com", Password: "12345678"})
	assert.ErrorIs(t, err, ErrUsernameExists)

	_, err = env.auth.Login(ctx, LoginInput{Username: "agent007", Password: "12345678"})
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)

	token := linkToken(t, msg.Vars["link"], "api/auth/confirmed_email/")
	message, err := env.auth.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, MsgEmailConfirmed, message)

	message, err = env.auth.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, MsgEmailAlreadyConfirmed, message)

	pair, err := env.auth.Login(ctx, LoginInput{Username: "agent007", Password: "12345678"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	resolved, err := env.resolver.Resolve(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
	assert.Equal(t, "agent007", resolved.Username)
}

func TestAuth_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Username: "", Email: "a@b.com", Password: "12345678"},
		{Username: "alice", Email: "not-an-email", Password: "12345678"},
		{Username: "alice", Email: "a@b.com", Password: ""},
	}
	for _, input := range cases {
		_, err := env.auth.Register(ctx, input)
		assert.ErrorIs(t, err, ErrValidation)
	}
	env.mailer.none(t)
}

func TestAuth_RegisterRejectsPathLikeUsernames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, username := range []string{"../../x y#z?q", "a..b", ".alice", "alice.", "al ice", "al/ice", "al%2fice"} {
		_, err := env.auth.Register(ctx, RegisterInput{Username: username, Email: "a@b.com", Password: "12345678"})
		assert.ErrorIs(t, err, ErrValidation, username)
	}
	env.mailer.none(t)

	for _, username := range []string{"james.bond", "agent_007", "x-men"} {
		_, err := env.auth.Register(ctx, RegisterInput{Username: username, Email: username + "@example.com", Password: "12345678"})
		require.NoError(t, err, username)
		env.mailer.next(t)
	}
}

func TestAuth_RegisterNormalizesEmail(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.auth.Register(context.Background(), RegisterInput{Username: "bob", Email: "  Bob@Example.COM ", Password: "12345678"})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", user.Email)

	stored := env.users.get(t, user.ID)
	ok, err := security.VerifyPassword("12345678", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuth_LoginWrongCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerConfirmed(t, "alice", "alice@example.com", "secret123")

	_, err := env.auth.Login(ctx, LoginInput{Username: "nobody", Password: "secret123"})
	assert.ErrorIs(t, err, ErrWrongCredentials)

	_, err = env.auth.Login(ctx, LoginInput{Username: "alice", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrWrongCredentials)

	_, err = env.auth.Login(ctx, LoginInput{Username: "alice"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuth_LoginStoresSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerConfirmed(t, "alice", "alice@example.com", "secret123")

	pair, err := env.auth.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	stored, ok, err := env.sessions.GetRefreshToken(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pair.RefreshToken, stored)
	assert.Equal(t, env.tokens.TTL(security.KindRefresh), env.redis.TTL("refresh_token:"+user.ID))

	snapshot, ok, err := env.sessions.GetUserSnapshot(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", snapshot.Username)
}

func TestAuth_LoginSurvivesCacheOutage(t *testing.T) {
	env := newTestEnv(t)
	env.registerConfirmed(t, "alice", "alice@example.com", "secret123")
	env.redis.Close()

	pair, err := env.auth.Login(context.Background(), LoginInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestAuth_Refresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerConfirmed(t, "alice", "alice@example.com", "secret123")

	first, err := env.auth.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := env.auth.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, first.RefreshToken, refreshed.RefreshToken)
	assert.NotEqual(t, first.AccessToken, refreshed.AccessToken)
	assert.Equal(t, "bearer", refreshed.TokenType)

	claims, err := env.tokens.DecodeAccess(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	second, err := env.auth.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = env.auth.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestAuth_RefreshRejectsOtherTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerConfirmed(t, "alice", "alice@example.com", "secret123")

	pair, err := env.auth.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrCredentialsInvalid)

	_, err = env.auth.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrCredentialsInvalid)
}

func TestAuth_RefreshUserGone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerConfirmed(t, "alice", "alice@example.com", "secret123")

	pair, err := env.auth.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	env.users.remove(user.ID)
	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.False(t, env.redis.Exists("refresh_token:"+user.ID))
}

func TestAuth_LogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerConfirmed(t, "alice", "alice@example.com", "secret123")

	pair, err := env.auth.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	resolved, err := env.resolver.Resolve(ctx, pair.AccessToken)
	require.NoError(t, err)

	assert.Equal(t, MsgLogout, env.auth.Logout(ctx, resolved))
	assert.Equal(t, MsgLogout, env.auth.Logout(ctx, resolved))
	assert.False(t, env.redis.Exists("refresh_token:"+user.ID))

	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	again, err := env.resolver.Resolve(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.True(t, env.redis.Exists("user:"+user.ID))
}

func TestAuth_RequestEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	message, err := env.auth.RequestEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.Equal(t, MsgEmailCheck, message)
	env.mailer.none(t)

	_, err = env.auth.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "12345678"})
	require.NoError(t, err)
	env.mailer.next(t)

	message, err = env.auth.RequestEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, MsgEmailCheck, message)
	resent := env.mailer.next(t)
	assert.Equal(t, mail.TemplateRegistration, resent.Template)

	env.registerConfirmed(t, "alice", "alice@example.com", "secret123")
	message, err = env.auth.RequestEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, MsgEmailCheck, message)
	env.mailer.none(t)

	_, err = env.auth.RequestEmail(ctx, "nope")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuth_ConfirmEmailErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.ConfirmEmail(ctx, "garbage")
	assert.ErrorIs(t, err, ErrWrongToken)

	token, err := env.tokens.Issue(security.EmailClaims{Email: "ghost@example.com"}, 0)
	require.NoError(t, err)
	_, err = env.auth.ConfirmEmail(ctx, token)
	assert.ErrorIs(t, err, ErrVerification)

	access, err := env.tokens.Issue(security.AccessClaims{Username: "a", UserID: "u1"}, 0)
	require.NoError(t, err)
	_, err = env.auth.ConfirmEmail(ctx, access)
	assert.ErrorIs(t, err, ErrWrongToken)
}

func TestAuth_ResetPasswordRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	message, err := env.auth.ResetPassword(ctx, ResetPasswordInput{Email: "ghost@example.com", Password: "newpass123"})
	require.NoError(t, err)
	assert.Equal(t, MsgEmailCheck, message)
	env.mailer.none(t)

	_, err = env.auth.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "12345678"})
	require.NoError(t, err)
	env.mailer.next(t)

	_, err = env.auth.ResetPassword(ctx, ResetPasswordInput{Email: "bob@example.com", Password: "newpass123"})
	assert.ErrorIs(t, err, ErrResetNotConfirmed)
	assert.NotErrorIs(t, err, ErrEmailNotConfirmed)
}

func TestAuth_ResetPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerConfirmed(t, "alice", "alice@example.com", "secret123")

	pair, err := env.auth.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	message, err := env.auth.ResetPassword(ctx, ResetPasswordInput{Email: "alice@example.com", Password: "newpass123"})
	require.NoError(t, err)
	assert.Equal(t, MsgEmailCheck, message)

	msg := env.mailer.next(t)
	assert.Equal(t, mail.TemplateResetPassword, msg.Template)

	_, err = env.auth.Login(ctx, LoginInput{Username: "alice", Password: "newpass123"})
	assert.ErrorIs(t, err, ErrWrongCredentials)

	token := linkToken(t, msg.Vars["link"], "api/auth/confirm_reset_password/")
	message, err = env.auth.ConfirmResetPassword(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, MsgPasswordReset, message)

	assert.False(t, env.redis.Exists("refresh_token:"+user.ID))
	assert.False(t, env.redis.Exists("user:"+user.ID))

	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = env.auth.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	assert.ErrorIs(t, err, ErrWrongCredentials)

	_, err = env.auth.Login(ctx, LoginInput{Username: "alice", Password: "newpass123"})
	require.NoError(t, err)
}

func TestAuth_ConfirmResetPasswordErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.ConfirmResetPassword(ctx, "garbage")
	assert.ErrorIs(t, err, ErrWrongToken)

	emailToken, err := env.tokens.Issue(security.EmailClaims{Email: "a@b.com"}, 0)
	require.NoError(t, err)
	_, err = env.auth.ConfirmResetPassword(ctx, emailToken)
	assert.ErrorIs(t, err, ErrWrongToken)

	token, err := env.tokens.Issue(security.ResetClaims{Email: "ghost@example.com", PasswordHash: "hash"}, 0)
	require.NoError(t, err)
	_, err = env.auth.ConfirmResetPassword(ctx, token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// orderedSessions records the stored password hash at the moment a session
// is cleared.
type orderedSessions struct {
	*cache.SessionCache
	users  *fakeUsers
	t      *testing.T
	hashes []string
}

func (o *orderedSessions) DeleteSession(ctx context.Context, id string) error {
	o.hashes = append(o.hashes, o.users.get(o.t, id).PasswordHash)
	return o.SessionCache.DeleteSession(ctx, id)
}

func TestAuth_ConfirmResetPasswordStoresHashBeforeClearingSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerConfirmed(t, "alice", "alice@example.com", "secret123")

	sessions := &orderedSessions{SessionCache: env.sessions, users: env.users, t: t}
	env.auth.sessions = sessions

	newHash, err := fastHash("newpass123")
	require.NoError(t, err)
	token, err := env.tokens.Issue(security.ResetClaims{Email: "alice@example.com", PasswordHash: newHash}, 0)
	require.NoError(t, err)

	_, err = env.auth.ConfirmResetPassword(ctx, token)
	require.NoError(t, err)

	require.Len(t, sessions.hashes, 1)
	assert.Equal(t, newHash, sessions.hashes[0])
	assert.Equal(t, newHash, env.users.get(t, user.ID).PasswordHash)
}
