package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"contactbook/internal/ids"
)

var (
	// ErrMissingSecret is a configuration error: no signing secret was provided.
	ErrMissingSecret = errors.New("jwt secret is not configured")
	// ErrInvalidToken covers every decode failure: bad signature, malformed
	// payload, expiry in the past, wrong kind or a missing required field.
	ErrInvalidToken = errors.New("invalid token")
)

type TokenKind string

const (
	KindAccess        TokenKind = "access"
	KindRefresh       TokenKind = "refresh"
	KindEmailConfirm  TokenKind = "email_confirm"
	KindPasswordReset TokenKind = "password_reset"
)

// Claims is one of AccessClaims, RefreshClaims, EmailClaims or ResetClaims.
type Claims interface {
	Kind() TokenKind
}

type AccessClaims struct {
	Username  string
	UserID    string
	ExpiresAt time.Time
}

type RefreshClaims struct {
	Username  string
	UserID    string
	ExpiresAt time.Time
}

type EmailClaims struct {
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type ResetClaims struct {
	Email        string
	PasswordHash string
	ExpiresAt    time.Time
}

func (AccessClaims) Kind() TokenKind  { return KindAccess }
func (RefreshClaims) Kind() TokenKind { return KindRefresh }
func (EmailClaims) Kind() TokenKind   { return KindEmailConfirm }
func (ResetClaims) Kind() TokenKind   { return KindPasswordReset }

type wireClaims struct {
	TokenKind TokenKind `json:"kind"`
	UserID    string    `json:"id,omitempty"`
	Password  string    `json:"password,omitempty"`
	jwt.RegisteredClaims
}

type TokenTTLs struct {
	Access        time.Duration
	Refresh       time.Duration
	EmailConfirm  time.Duration
	PasswordReset time.Duration
}

const EmailConfirmTTL = 7 * 24 * time.Hour

type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
	ttls   TokenTTLs
	now    func() time.Time
}

func NewTokenCodec(secret string, algorithm string, ttls TokenTTLs) (*TokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}

	var method jwt.SigningMethod
	switch strings.ToUpper(algorithm) {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}

	if ttls.EmailConfirm <= 0 {
		ttls.EmailConfirm = EmailConfirmTTL
	}
	if ttls.PasswordReset <= 0 {
		ttls.PasswordReset = ttls.Access
	}

	return &TokenCodec{
		secret: []byte(secret),
		method: method,
		ttls:   ttls,
		now:    time.Now,
	}, nil
}

func (c *TokenCodec) TTL(kind TokenKind) time.Duration {
	switch kind {
	case KindAccess:
		return c.ttls.Access
	case KindRefresh:
		return c.ttls.Refresh
	case KindEmailConfirm:
		return c.ttls.EmailConfirm
	case KindPasswordReset:
		return c.ttls.PasswordReset
	}
	return 0
}

// Issue signs claims with an expiry of now+ttl. A positive ttl overrides the
// configured default for the claim kind.
func (c *TokenCodec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if c == nil || len(c.secret) == 0 {
		return "", ErrMissingSecret
	}
	if claims == nil {
		return "", errors.New("nil claims")
	}
	if ttl <= 0 {
		ttl = c.TTL(claims.Kind())
	}

	now := c.now()
	wire := wireClaims{
		TokenKind: claims.Kind(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	switch v := claims.(type) {
	case AccessClaims:
		wire.Subject = v.Username
		wire.UserID = v.UserID
		wire.ID = ids.New()
	case RefreshClaims:
		wire.Subject = v.Username
		wire.UserID = v.UserID
		wire.ID = ids.New()
	case EmailClaims:
		wire.Subject = v.Email
	case ResetClaims:
		wire.Subject = v.Email
		wire.Password = v.PasswordHash
	default:
		return "", fmt.Errorf("unsupported claims type %T", claims)
	}

	signed, err := jwt.NewWithClaims(c.method, wire).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Decode verifies the token and returns the claim variant for kind.
func (c *TokenCodec) Decode(tokenStr string, kind TokenKind) (Claims, error) {
	if c == nil || len(c.secret) == 0 {
		return nil, ErrMissingSecret
	}

	var wire wireClaims
	_, err := jwt.ParseWithClaims(tokenStr, &wire, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if wire.TokenKind != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, kind, wire.TokenKind)
	}
	if wire.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	var expiresAt time.Time
	if wire.ExpiresAt != nil {
		expiresAt = wire.ExpiresAt.Time
	}

	switch kind {
	case KindAccess, KindRefresh:
		if wire.UserID == "" {
			return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
		}
		if kind == KindAccess {
			return AccessClaims{Username: wire.Subject, UserID: wire.UserID, ExpiresAt: expiresAt}, nil
		}
		return RefreshClaims{Username: wire.Subject, UserID: wire.UserID, ExpiresAt: expiresAt}, nil
	case KindEmailConfirm:
		var issuedAt time.Time
		if wire.IssuedAt != nil {
			issuedAt = wire.IssuedAt.Time
		}
		return EmailClaims{Email: wire.Subject, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
	case KindPasswordReset:
		if wire.Password == "" {
			return nil, fmt.Errorf("%w: missing password", ErrInvalidToken)
		}
		return ResetClaims{Email: wire.Subject, PasswordHash: wire.Password, ExpiresAt: expiresAt}, nil
	}

	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidToken, kind)
}

func (c *TokenCodec) DecodeAccess(tokenStr string) (AccessClaims, error) {
	claims, err := c.Decode(tokenStr, KindAccess)
	if err != nil {
		return AccessClaims{}, err
	}
	return claims.(AccessClaims), nil
}

func (c *TokenCodec) DecodeRefresh(tokenStr string) (RefreshClaims, error) {
	claims, err := c.Decode(tokenStr, KindRefresh)
	if err != nil {
		return RefreshClaims{}, err
	}
	return claims.(RefreshClaims), nil
}

func (c *TokenCodec) DecodeEmail(tokenStr string) (EmailClaims, error) {
	claims, err := c.Decode(tokenStr, KindEmailConfirm)
	if err != nil {
		return EmailClaims{}, err
	}
	return claims.(EmailClaims), nil
}

func (c *TokenCodec) DecodeReset(tokenStr string) (ResetClaims, error) {
	claims, err := c.Decode(tokenStr, KindPasswordReset)
	if err != nil {
		return ResetClaims{}, err
	}
	return claims.(ResetClaims), nil
}
