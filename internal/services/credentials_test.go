package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caidasapi/internal/apperr"
)

func TestCredentialsCreate(t *testing.T) {
	c := NewCredentials(newTestStore(t), nil)
	ctx := context.Background()

	id, err := c.Create(ctx, "Ana", "ana@example.com", "secreto", "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	t.Run("same email twice is a conflict", func(t *testing.T) {
		_, err := c.Create(ctx, "Otra", "ana@example.com", "x", "555")
		assert.True(t, apperr.Is(err, apperr.KindConflict))

		_, err = c.Create(ctx, "Otra", " ANA@example.com ", "x", "555")
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := c.Create(ctx, "", "b@example.com", "x", "")
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		_, err = c.Create(ctx, "B", "b@example.com", "", "")
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("hash is stored, not the password", func(t *testing.T) {
		u, err := c.Profile(ctx, "ana@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, "secreto", u.PasswordHash)
		assert.False(t, u.RegisteredAt.IsZero())
	})
}

func TestCredentialsVerify(t *testing.T) {
	c := NewCredentials(newTestStore(t), nil)
	ctx := context.Background()

	_, err := c.Create(ctx, "Ana", "ana@example.com", "secreto", "555")
	require.NoError(t, err)

	u, err := c.Verify(ctx, "ana@example.com", "secreto")
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)

	_, err = c.Verify(ctx, "ana@example.com", "otra")
	assert.True(t, apperr.Is(err, apperr.KindAuth))

	_, err = c.Verify(ctx, "nadie@example.com", "secreto")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Equal(t, apperr.PublicMessage(ErrInvalidCredentials), apperr.PublicMessage(err))
}

func TestCredentialsUpdate(t *testing.T) {
	c := NewCredentials(newTestStore(t), nil)
	ctx := context.Background()

	_, err := c.Create(ctx, "Ana", "ana@example.com", "secreto", "555")
	require.NoError(t, err)

	t.Run("no fields is a no-op error", func(t *testing.T) {
		err := c.Update(ctx, "ana@example.com", ProfileUpdate{})
		assert.True(t, apperr.Is(err, apperr.KindNoOp))
	})

	t.Run("unknown user", func(t *testing.T) {
		name := "X"
		err := c.Update(ctx, "nadie@example.com", ProfileUpdate{Name: &name})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("password is rehashed", func(t *testing.T) {
		pw := "nuevo"
		phone := "666"
		require.NoError(t, c.Update(ctx, "ana@example.com", ProfileUpdate{Password: &pw, Phone: &phone}))

		_, err := c.Verify(ctx, "ana@example.com", "secreto")
		assert.True(t, apperr.Is(err, apperr.KindAuth))

		u, err := c.Verify(ctx, "ana@example.com", "nuevo")
		require.NoError(t, err)
		assert.Equal(t, "666", u.Phone)
		assert.Equal(t, "Ana", u.Name)
	})
}

func TestCredentialsProfile(t *testing.T) {
	c := NewCredentials(newTestStore(t), nil)
	ctx := context.Background()

	_, err := c.Profile(ctx, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = c.Profile(ctx, "nadie@example.com")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
