package service

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindInvalid
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooLarge
	KindTooManyRequests
)

// Error is a failure that the HTTP layer can report to the client as
// {"error": Code, "detail": Message}.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind and code so wrapped copies still
// compare equal to the package-level values.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

const (
	MsgEmailAlreadyExists     = "User with this email already exists"
	MsgUsernameAlreadyExists  = "User with this username already exists"
	MsgEmailNotConfirmed      = "Email is not confirmed"
	MsgEmailAlreadyConfirmed  = "Email already confirmed"
	MsgEmailConfirmed         = "Email confirmed"
	MsgEmailCheck             = "Check your email for the confirmation link"
	MsgWrongCredentials       = "Wrong credentials"
	MsgLogout                 = "Logged out successfully"
	MsgWrongToken             = "Wrong token"
	MsgInsufficientPermission = "Insufficient permissions"
	MsgUserNotFound           = "User not found"
	MsgPasswordReset          = "Password has been reset"
	MsgSessionsRevoked        = "Sessions revoked"
)

var (
	ErrEmailExists        = &Error{Kind: KindConflict, Code: "USER_EMAIL_ALREADY_EXISTS", Message: MsgEmailAlreadyExists}
	ErrUsernameExists     = &Error{Kind: KindConflict, Code: "USER_USERNAME_ALREADY_EXISTS", Message: MsgUsernameAlreadyExists}
	ErrWrongCredentials   = &Error{Kind: KindUnauthorized, Code: "USER_WRONG_CREDENTIALS", Message: MsgWrongCredentials}
	ErrEmailNotConfirmed  = &Error{Kind: KindUnauthorized, Code: "EMAIL_NOT_CONFIRMED", Message: MsgEmailNotConfirmed}
	ErrResetNotConfirmed  = &Error{Kind: KindBadRequest, Code: "EMAIL_NOT_CONFIRMED", Message: MsgEmailNotConfirmed}
	ErrTokenRevoked       = &Error{Kind: KindUnauthorized, Code: "TOKEN_REVOKED", Message: "Refresh token is invalid or revoked"}
	ErrCredentialsInvalid = &Error{Kind: KindUnauthorized, Code: "CREDENTIALS_INVALID", Message: "Could not validate credentials"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Code: "USER_NOT_FOUND", Message: MsgUserNotFound}
	ErrVerification       = &Error{Kind: KindBadRequest, Code: "VERIFICATION_ERROR", Message: "Verification error"}
	ErrWrongToken         = &Error{Kind: KindBadRequest, Code: "WRONG_TOKEN", Message: MsgWrongToken}
	ErrForbidden          = &Error{Kind: KindForbidden, Code: "INSUFFICIENT_PERMISSIONS", Message: MsgInsufficientPermission}
	ErrUnsupportedMedia   = &Error{Kind: KindBadRequest, Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Avatar must be a JPEG, PNG, GIF or WEBP image"}
	ErrAvatarTooLarge     = &Error{Kind: KindTooLarge, Code: "AVATAR_TOO_LARGE", Message: "Avatar file is too large"}
	ErrRateLimited        = &Error{Kind: KindTooManyRequests, Code: "TOO_MANY_REQUESTS", Message: "Too many requests"}
	ErrValidation         = &Error{Kind: KindInvalid, Code: "VALIDATION_ERROR", Message: "Invalid input"}
)

func validationError(err error) error {
	return &Error{
		Kind:    KindInvalid,
		Code:    ErrValidation.Code,
		Message: err.Error(),
		Err:     err,
	}
}
