package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caidasapi/internal/apperr"
	"caidasapi/internal/models"
)

func TestEventsCreate(t *testing.T) {
	s := NewEvents(newTestStore(t), nil)
	fixed := time.Date(2026, 5, 4, 12, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	ev, err := s.Create(context.Background(), EventInput{Location: "cocina", Severity: "ALTA", Details: "resbalón"})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "alta", ev.Severity)
	assert.True(t, fixed.Equal(ev.OccurredAt))
	assert.Empty(t, ev.ImageIDs)
	assert.NotNil(t, ev.Images)

	_, err = s.Create(context.Background(), EventInput{Severity: "alta"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.Create(context.Background(), EventInput{Location: "sala", Severity: "grave"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestEventsGet(t *testing.T) {
	s := NewEvents(newTestStore(t), nil)
	ctx := context.Background()

	ev, err := s.Create(ctx, EventInput{Location: "baño", Severity: "media"})
	require.NoError(t, err)

	got, err := s.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "baño", got.Location)

	_, err = s.Get(ctx, "not-an-id")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.Get(ctx, "00000000-0000-4000-8000-000000000000")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	ok, err := s.Exists(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "garbage")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEventsListResolvesImages(t *testing.T) {
	store := newTestStore(t)
	s := NewEvents(store, nil)
	ctx := context.Background()

	withImages, err := s.Create(ctx, EventInput{Location: "cocina", Severity: "alta"})
	require.NoError(t, err)
	_, err = s.Create(ctx, EventInput{Location: "sala", Severity: "baja"})
	require.NoError(t, err)

	img := &models.Image{
		Description: "suelo",
		UploadedAt:  time.Now(),
		Status:      models.ImageStatusProcessed,
		URLs:        &models.HostedURLs{Optimized: "opt", Thumbnail: "thumb"},
		Metadata:    &models.ImageMetadata{},
	}
	require.NoError(t, store.CreateImage(ctx, img))

	// One real image and one id whose record no longer exists.
	require.NoError(t, s.AppendImage(ctx, withImages.ID, "00000000-0000-4000-8000-000000000000"))
	require.NoError(t, s.AppendImage(ctx, withImages.ID, img.ID))

	views, err := s.List(ctx, models.EventFilter{})
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := map[string]models.EventView{}
	for _, v := range views {
		byID[v.ID] = v
	}

	first := byID[withImages.ID]
	assert.Len(t, first.ImageIDs, 2)
	require.Len(t, first.Images, 1)
	assert.Equal(t, models.ImageSummary{ID: img.ID, Description: "suelo", ThumbnailURL: "thumb", OptimizedURL: "opt"}, first.Images[0])

	for id, v := range byID {
		if id != withImages.ID {
			assert.Empty(t, v.Images)
		}
	}

	filtered, err := s.List(ctx, models.EventFilter{Severity: "baja"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "sala", filtered[0].Location)

	_, err = s.List(ctx, models.EventFilter{ID: "nope"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestEventsAppendToMissingEvent(t *testing.T) {
	s := NewEvents(newTestStore(t), nil)
	err := s.AppendImage(context.Background(), "00000000-0000-4000-8000-000000000000", "img")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
