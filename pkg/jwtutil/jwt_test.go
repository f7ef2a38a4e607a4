package jwtutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	j := NewJWTUtil(&JWTConfig{SigningKey: "secret", ExpirationHours: 1})

	token, err := j.GenerateToken("owner@example.com", 7, "merchant", "delta-store")
	require.NoError(t, err)

	claims, err := j.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", claims.Email)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "merchant", claims.Role)
	assert.Equal(t, "delta-store", claims.StoreSlug)
}

func TestValidateRejectsForeignKey(t *testing.T) {
	issuer := NewJWTUtil(&JWTConfig{SigningKey: "one", ExpirationHours: 1})
	verifier := NewJWTUtil(&JWTConfig{SigningKey: "two", ExpirationHours: 1})

	token, err := issuer.GenerateToken("a@example.com", 1, "admin", "")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	j := NewJWTUtil(&JWTConfig{SigningKey: "secret", ExpirationHours: -1})

	token, err := j.GenerateToken("a@example.com", 1, "admin", "")
	require.NoError(t, err)

	_, err = j.ValidateToken(token)
	assert.Error(t, err)
}

func TestMissingConfig(t *testing.T) {
	j := NewJWTUtil(nil)

	_, err := j.GenerateToken("a@example.com", 1, "admin", "")
	assert.Error(t, err)
	_, err = j.ValidateToken("x")
	assert.Error(t, err)
}
