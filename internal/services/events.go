package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"caidasapi/internal/apperr"
	"caidasapi/internal/database"
	"caidasapi/internal/models"
)

// Severities accepted for an event.
var Severities = []string{"baja", "media", "alta"}

// EventInput holds the client supplied fields of a new event.
type EventInput struct {
	Category string
	Severity string
	Location string
	Details  string
}

// Events manages fall events and their image links.
type Events struct {
	store  database.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewEvents returns the event service over store. A nil logger discards output.
func NewEvents(store database.Store, logger *zap.Logger) *Events {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Events{store: store, logger: logger, now: time.Now}
}

// Create stamps the event with the current time and stores it with no images.
func (s *Events) Create(ctx context.Context, in EventInput) (*models.EventView, error) {
	in.Location = strings.TrimSpace(in.Location)
	in.Severity = strings.ToLower(strings.TrimSpace(in.Severity))
	if in.Location == "" {
		return nil, apperr.Validation("location is required")
	}
	if !validSeverity(in.Severity) {
		return nil, apperr.Validation("severity must be one of: " + strings.Join(Severities, ", "))
	}

	e := &models.Event{
		Category:   strings.TrimSpace(in.Category),
		Severity:   in.Severity,
		Location:   in.Location,
		Details:    in.Details,
		OccurredAt: s.now().UTC(),
		ImageIDs:   []string{},
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, apperr.Upstream("could not save event", err)
	}

	s.logger.Info("event recorded",
		zap.String("event_id", e.ID),
		zap.String("severity", e.Severity),
		zap.String("location", e.Location),
	)
	return &models.EventView{Event: *e, Images: []models.ImageSummary{}}, nil
}

// List returns the events matching f, each with the summaries of its images
// that still resolve.
func (s *Events) List(ctx context.Context, f models.EventFilter) ([]models.EventView, error) {
	if f.ID != "" && !s.store.ValidID(f.ID) {
		return nil, apperr.Validation("invalid event id")
	}

	events, err := s.store.ListEvents(ctx, f)
	if err != nil {
		return nil, apperr.Upstream("could not list events", err)
	}

	views := make([]models.EventView, 0, len(events))
	for _, e := range events {
		summaries, err := s.resolve(ctx, e.ImageIDs)
		if err != nil {
			return nil, err
		}
		views = append(views, models.EventView{Event: e, Images: summaries})
	}
	return views, nil
}

// Get returns one event with its resolved images.
func (s *Events) Get(ctx context.Context, id string) (*models.EventView, error) {
	if !s.store.ValidID(id) {
		return nil, apperr.Validation("invalid event id")
	}

	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("could not load event", err)
	}
	if e == nil {
		return nil, apperr.NotFound("event not found")
	}

	summaries, err := s.resolve(ctx, e.ImageIDs)
	if err != nil {
		return nil, err
	}
	return &models.EventView{Event: *e, Images: summaries}, nil
}

// Exists reports whether an event with that id is stored. Malformed ids do not exist.
func (s *Events) Exists(ctx context.Context, id string) (bool, error) {
	if !s.store.ValidID(id) {
		return false, nil
	}
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return false, apperr.Upstream("could not load event", err)
	}
	return e != nil, nil
}

// AppendImage adds imageID to the end of the event's image list.
func (s *Events) AppendImage(ctx context.Context, eventID, imageID string) error {
	if err := s.store.AppendEventImage(ctx, eventID, imageID); err != nil {
		if errors.Is(err, database.ErrEventNotFound) {
			return apperr.Wrap(apperr.KindNotFound, "event not found", err)
		}
		return apperr.Upstream("could not link image to event", err)
	}
	return nil
}

func (s *Events) resolve(ctx context.Context, ids []string) ([]models.ImageSummary, error) {
	summaries := []models.ImageSummary{}
	if len(ids) == 0 {
		return summaries, nil
	}

	images, err := s.store.GetImagesByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Upstream("could not load event images", err)
	}
	for _, img := range images {
		sum := models.ImageSummary{ID: img.ID, Description: img.Description}
		if img.URLs != nil {
			sum.ThumbnailURL = img.URLs.Thumbnail
			sum.OptimizedURL = img.URLs.Optimized
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

func validSeverity(s string) bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}
