package service

import "errors"

// Kind classifies expected failures so the transport can pick a status.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindNotFound
	KindConflict
	KindInvalidResetToken
	KindDependency
)

// Error is an operational failure with a message that is safe to show clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

var (
	// ErrInvalidCredentials is shared by unknown email and wrong password so neither is disclosed.
	ErrInvalidCredentials = newError(KindAuthentication, "Incorrect email or password", nil)
	// ErrNotLoggedIn is returned when no token accompanies the request.
	ErrNotLoggedIn = newError(KindAuthentication, "You are not logged in. Please login to get access", nil)
	// ErrInvalidSession covers bad signatures and malformed tokens.
	ErrInvalidSession = newError(KindAuthentication, "Invalid token. Please login again", nil)
	// ErrSessionExpired is returned for tokens past their validity window.
	ErrSessionExpired = newError(KindAuthentication, "Your token has expired. Please login again", nil)
	// ErrUserGone is returned when the token subject no longer resolves to an active user.
	ErrUserGone = newError(KindAuthentication, "The user belonging to this token no longer exists", nil)
	// ErrPasswordChanged enforces that tokens older than the last password change are void.
	ErrPasswordChanged = newError(KindAuthentication, "Password was recently changed. Please login again", nil)
	// ErrWrongCurrentPassword is returned by UpdatePassword.
	ErrWrongCurrentPassword = newError(KindAuthentication, "Your current password is wrong", nil)
	// ErrInvalidOrExpiredToken is returned when a reset secret is unknown, used or expired.
	ErrInvalidOrExpiredToken = newError(KindInvalidResetToken, "Token is invalid or has expired", nil)
	// ErrEmailTaken is returned when an email is already registered.
	ErrEmailTaken = newError(KindConflict, "Email is already registered", nil)
	// ErrNoSuchEmail is returned by ForgotPassword for unknown addresses.
	ErrNoSuchEmail = newError(KindNotFound, "There is no user with that email address", nil)
)

// KindOf returns the kind of an operational error, or 0 for unexpected faults.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
