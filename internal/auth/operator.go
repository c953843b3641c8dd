package auth

import (
	"crypto/subtle"
	"fmt"
)

// Operator checks login attempts against the configured account.
type Operator struct {
	username string
	hash     string
}

// NewOperator validates the stored hash up front so a broken configuration
// fails at startup rather than at the first login.
func NewOperator(username, passwordHash string) (*Operator, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: empty operator username", ErrInvalidCredentials)
	}
	if _, _, _, err := parsePHC(passwordHash); err != nil {
		return nil, err
	}
	return &Operator{username: username, hash: passwordHash}, nil
}

// Username returns the configured operator name.
func (o *Operator) Username() string {
	return o.username
}

// Authenticate returns ErrInvalidCredentials unless both username and
// password match. The password is always hashed so a wrong username takes
// as long as a wrong password.
func (o *Operator) Authenticate(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(o.username)) == 1
	passOK, err := VerifyPassword(password, o.hash)
	if err != nil {
		return err
	}
	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}
