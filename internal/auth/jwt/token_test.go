package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateValidateRoundTrip(t *testing.T) {
	mgr := NewManager(Config{Secret: []byte("test-secret")})

	token, err := mgr.Generate(Identity{
		UserID:      "google:1234567890",
		Email:       "player@example.com",
		DisplayName: "Player One",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := mgr.Validate(token)
	assert.NoError(t, err)
	assert.Equal(t, "google:1234567890", claims.UserID)
	assert.Equal(t, "player@example.com", claims.Email)
	assert.Equal(t, "google:1234567890", claims.Subject)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewManager(Config{Secret: []byte("secret-a")}).Generate(Identity{UserID: "google:1"})
	assert.NoError(t, err)

	_, err = NewManager(Config{Secret: []byte("secret-b")}).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	mgr := NewManager(Config{Secret: []byte("test-secret"), TTL: -time.Minute})

	token, err := mgr.Generate(Identity{UserID: "google:1"})
	assert.NoError(t, err)

	_, err = mgr.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	mgr := NewManager(Config{Secret: []byte("test-secret")})

	_, err := mgr.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
