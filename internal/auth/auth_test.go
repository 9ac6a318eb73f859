package auth

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/telemetry-ingest/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	os.Setenv("JWT_SECRET", "test-secret")
	svc, err := NewService()
	require.NoError(t, err)
	return svc
}

func TestHashAndCheckPassword(t *testing.T) {
	svc := newTestService(t)

	hash, err := svc.HashPassword("hunter2secret")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2secret", hash)

	assert.True(t, svc.CheckPassword("hunter2secret", hash))
	assert.False(t, svc.CheckPassword("wrong", hash))
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService(t)

	user := &models.User{ID: 42, Username: "operator"}
	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "operator", claims.Username)
}

func TestValidateTokenWithBearerPrefix(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.GenerateToken(&models.User{ID: 1, Username: "operator"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Username)
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("JWT_EXPIRY", "-1h")
	defer os.Unsetenv("JWT_EXPIRY")

	svc, err := NewService()
	require.NoError(t, err)

	token, err := svc.GenerateToken(&models.User{ID: 1, Username: "operator"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestExtractTokenFromHeader(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.ExtractTokenFromHeader("Bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	_, err = svc.ExtractTokenFromHeader("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ExtractTokenFromHeader("Basic abc123")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
