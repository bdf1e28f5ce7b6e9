package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caidasapi/internal/apperr"
	"caidasapi/internal/database"
	"caidasapi/internal/models"
)

type unreachableStore struct {
	database.Store
}

func (unreachableStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func (unreachableStore) Totals(context.Context) (models.Totals, error) {
	return models.Totals{}, errors.New("connection refused")
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	status := NewStatus(store, nil)

	require.NoError(t, status.Ping(ctx))

	_, err := NewCredentials(store, nil).Create(ctx, "Ana", "ana@example.com", "secreto", "")
	require.NoError(t, err)
	_, err = NewEvents(store, nil).Create(ctx, EventInput{Location: "cocina", Severity: "alta"})
	require.NoError(t, err)

	totals, err := status.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.Totals{Users: 1, Images: 0, Events: 1}, totals)
}

func TestStatusStoreDown(t *testing.T) {
	ctx := context.Background()
	status := NewStatus(unreachableStore{Store: newTestStore(t)}, nil)

	err := status.Ping(ctx)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Equal(t, "database unavailable", apperr.PublicMessage(err))

	_, err = status.Totals(ctx)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}
