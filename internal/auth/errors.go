package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for a wrong username or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid is returned for a malformed, expired or forged token.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrTicketInvalid is returned for an unknown, used or expired ticket.
	ErrTicketInvalid = errors.New("auth: invalid ticket")

	// ErrInvalidHash is returned when a stored password hash cannot be parsed.
	ErrInvalidHash = errors.New("auth: invalid password hash")
)
