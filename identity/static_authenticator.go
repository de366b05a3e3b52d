package identity

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/go-sso-service/internal/errors"
)

// StaticUser is a statically configured end user.
type StaticUser struct {
	Subject      string            `json:"subject"`
	Username     string            `json:"username"`
	DisplayName  string            `json:"displayName"`
	PasswordHash string            `json:"passwordHash"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// StaticAuthenticator authenticates against a fixed, configuration-supplied
// user list. Passwords are stored bcrypt-hashed.
type StaticAuthenticator struct {
	users map[string]StaticUser // username -> user
}

func NewStaticAuthenticator(users []StaticUser) *StaticAuthenticator {
	byName := make(map[string]StaticUser, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	return &StaticAuthenticator{users: byName}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, username, password string) (Claims, error) {
	user, ok := a.users[username]
	if !ok {
		return Claims{}, errors.ErrInvalidCredentials
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return Claims{}, errors.ErrInvalidCredentials
	}
	return Claims{
		Subject:     user.Subject,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Attributes:  user.Attributes,
	}, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
