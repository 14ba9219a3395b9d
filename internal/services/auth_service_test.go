package services

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T, password string) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService("test-secret", string(hash), zerolog.Nop())
}

func TestLoginIssuesOperatorToken(t *testing.T) {
	auth := newTestAuth(t, "hunter2")

	token, err := auth.Login("hunter2")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, OperatorSubject, claims.Role)
	require.Equal(t, OperatorSubject, claims.Subject)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	auth := newTestAuth(t, "hunter2")

	_, err := auth.Login("hunter3")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDisabledWithoutHash(t *testing.T) {
	auth := NewAuthService("", "", zerolog.Nop())

	_, err := auth.Login("anything")
	require.ErrorIs(t, err, ErrLoginDisabled)
}

func TestValidateTokenRejectsForeignAndExpired(t *testing.T) {
	auth := newTestAuth(t, "pw")
	other := NewAuthService("other-secret", "", zerolog.Nop())

	foreign, err := other.GenerateToken()
	require.NoError(t, err)
	_, err = auth.ValidateToken(foreign)
	require.Error(t, err)

	auth.now = func() time.Time { return time.Now().Add(-2 * TokenTTL) }
	expired, err := auth.GenerateToken()
	require.NoError(t, err)
	_, err = auth.ValidateToken(expired)
	require.Error(t, err)

	_, err = auth.ValidateToken("not.a.token")
	require.Error(t, err)
}
