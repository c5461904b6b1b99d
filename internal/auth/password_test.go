package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_ValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"short", "pw"},
		{"long password", "this-is-a-very-long-password-123!@#"},
		{"with special chars", "p@ssw0rd!"},
		{"with unicode", "パスワード12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)
			assert.True(t, IsHashed(hash))
			assert.True(t, len(hash) >= 60, "bcrypt hash should be at least 60 chars")
		})
	}
}

func TestHashPassword_Empty(t *testing.T) {
	hash, err := HashPassword("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
	assert.Empty(t, hash)
}

func TestHashPassword_DifferentHashesForSamePassword(t *testing.T) {
	hash1, err := HashPassword("testpassword123")
	require.NoError(t, err)

	hash2, err := HashPassword("testpassword123")
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2)
}

func TestCheckPassword_Hashed(t *testing.T) {
	hash, err := HashPassword("Password123")
	require.NoError(t, err)

	assert.True(t, CheckPassword("Password123", hash))
	assert.False(t, CheckPassword("password123", hash))
	assert.False(t, CheckPassword("", hash))
}

func TestCheckPassword_PlainText(t *testing.T) {
	assert.True(t, CheckPassword("secret", "secret"))
	assert.False(t, CheckPassword("wrong", "secret"))
	assert.False(t, CheckPassword("Secret", "secret"))
	assert.False(t, CheckPassword("secret ", "secret"))
}

func TestCheckPassword_EmptyStored(t *testing.T) {
	assert.False(t, CheckPassword("", ""))
	assert.False(t, CheckPassword("password", ""))
}

func TestIsHashed(t *testing.T) {
	assert.True(t, IsHashed("$2a$12$abcdefghijklmnopqrstuv"))
	assert.True(t, IsHashed("$2b$10$abcdefghijklmnopqrstuv"))
	assert.False(t, IsHashed("plain-password"))
	assert.False(t, IsHashed(""))
}
