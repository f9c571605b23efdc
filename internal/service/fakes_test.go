package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"contactbook/internal/cache"
	"contactbook/internal/config"
	"contactbook/internal/mail"
	"contactbook/internal/models"
	"contactbook/internal/repository"
	"contactbook/internal/security"
)

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]models.User
	lookups int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[string]models.User)}
}

func (f *fakeUsers) Create(_ context.Context, user models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
		if u.Username == user.Username {
			return repository.ErrUsernameTaken
		}
	}
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) find(match func(models.User) bool) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	for _, u := range f.byID {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (models.User, error) {
	return f.find(func(u models.User) bool { return u.ID == id })
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (models.User, error) {
	return f.find(func(u models.User) bool { return u.Username == username })
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	return f.find(func(u models.User) bool { return u.Email == email })
}

func (f *fakeUsers) ConfirmEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.byID {
		if u.Email == email && !u.Confirmed {
			u.Confirmed = true
			f.byID[id] = u
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) update(id string, fn func(*models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&u)
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	return f.update(id, func(u *models.User) { u.PasswordHash = passwordHash })
}

func (f *fakeUsers) UpdateAvatar(_ context.Context, id string, avatar string) error {
	return f.update(id, func(u *models.User) { u.Avatar = avatar })
}

func (f *fakeUsers) UpdateRole(_ context.Context, id string, role models.UserRole) error {
	return f.update(id, func(u *models.User) { u.Role = role })
}

func (f *fakeUsers) RunInTx(_ context.Context, fn func(tx UserStore) error) error {
	return fn(f)
}

func (f *fakeUsers) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

func (f *fakeUsers) get(t *testing.T, id string) models.User {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	require.True(t, ok, "user %s not stored", id)
	return u
}

type fakeMailer struct {
	sent chan mail.Message
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: make(chan mail.Message, 16)}
}

func (m *fakeMailer) Enqueue(_ context.Context, msg mail.Message) error {
	m.sent <- msg
	return nil
}

func (m *fakeMailer) next(t *testing.T) mail.Message {
	t.Helper()
	select {
	case msg := <-m.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("expected an email to be enqueued")
		return mail.Message{}
	}
}

func (m *fakeMailer) none(t *testing.T) {
	t.Helper()
	select {
	case msg := <-m.sent:
		t.Fatalf("unexpected email %s to %s", msg.Template, msg.To)
	case <-time.After(100 * time.Millisecond):
	}
}

type fakeAvatars struct {
	key         string
	contentType string
	data        []byte
}

func (f *fakeAvatars) Put(_ context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.key, f.contentType, f.data = key, contentType, data
	return "http://cdn.test/" + key, nil
}

func fastHash(password string) (string, error) {
	return security.HashPasswordWithParams(password, security.Argon2Params{
		Time:    1,
		Memory:  8 * 1024,
		Threads: 1,
		KeyLen:  32,
		SaltLen: 16,
	})
}

const testBaseURL = "http://testserver/"

type testEnv struct {
	redis    *miniredis.Miniredis
	client   *redis.Client
	users    *fakeUsers
	sessions *cache.SessionCache
	mailer   *fakeMailer
	tokens   *security.TokenCodec
	auth     *AuthService
	resolver *IdentityResolver
	accounts *UserService
	avatars  *fakeAvatars
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := security.NewTokenCodec("test-secret", "HS256", security.TokenTTLs{
		Access:  2 * time.Minute,
		Refresh: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	cfg := &config.AppConfig{HTTP: config.HTTPConfig{BaseURL: testBaseURL}}
	log := zerolog.Nop()

	env := &testEnv{
		redis:    srv,
		client:   client,
		users:    newFakeUsers(),
		sessions: cache.NewSessionCache(client, time.Second),
		mailer:   newFakeMailer(),
		tokens:   tokens,
		avatars:  &fakeAvatars{},
	}

	env.auth = NewAuthService(env.users, env.sessions, tokens, env.mailer, cfg, log)
	env.auth.hashPassword = fastHash
	env.resolver = NewIdentityResolver(tokens, env.users, env.sessions, time.Hour, log)
	env.accounts = NewUserService(env.users, env.sessions, env.avatars, 1024, log)
	env.accounts.hashPassword = fastHash
	return env
}

// registerConfirmed creates a user and follows the confirmation link.
func (e *testEnv) registerConfirmed(t *testing.T, username, email, password string) models.User {
	t.Helper()
	ctx := context.Background()

	user, err := e.auth.Register(ctx, RegisterInput{Username: username, Email: email, Password: password})
	require.NoError(t, err)

	msg := e.mailer.next(t)
	_, err = e.auth.ConfirmEmail(ctx, linkToken(t, msg.Vars["link"], "api/auth/confirmed_email/"))
	require.NoError(t, err)
	return user
}

func linkToken(t *testing.T, link, path string) string {
	t.Helper()
	prefix := testBaseURL + path
	require.True(t, strings.HasPrefix(link, prefix), "link %q", link)
	return strings.TrimPrefix(link, prefix)
}
