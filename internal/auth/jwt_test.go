package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/crowdfund-backend/internal/model"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret")
	token, err := svc.Generate("user-1", model.RoleManager, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.True(t, claims.Actor().IsManager())
}

func TestValidateRejects(t *testing.T) {
	svc := NewJWTService("secret")

	expired, err := svc.Generate("user-1", model.RoleUser, -time.Minute)
	require.NoError(t, err)
	_, err = svc.Validate(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewJWTService("other").Generate("user-1", model.RoleUser, time.Hour)
	require.NoError(t, err)
	_, err = svc.Validate(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Validate(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUnknownRoleIsUser(t *testing.T) {
	c := &Claims{UserID: "u", Role: "superuser"}
	assert.Equal(t, model.RoleUser, c.Actor().Role)
}
