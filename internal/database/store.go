package database

import (
	"context"
	"errors"

	"caidasapi/internal/models"
)

var (
	// ErrDuplicateEmail is returned by CreateUser when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrEventNotFound is returned by AppendEventImage when the event does not exist.
	ErrEventNotFound = errors.New("event not found")
)

// Store is the persistence layer for users, events and images.
//
// Lookups that find nothing return a nil record and a nil error. Create methods
// assign the new id to the passed record.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateUser applies upd and reports whether a user with that email exists.
	UpdateUser(ctx context.Context, email string, upd models.UserUpdate) (bool, error)

	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error)
	// AppendEventImage atomically appends imageID to the event's image list.
	// Duplicates are kept.
	AppendEventImage(ctx context.Context, eventID, imageID string) error

	CreateImage(ctx context.Context, img *models.Image) error
	// GetImagesByIDs returns the images that still exist, in the order of ids.
	GetImagesByIDs(ctx context.Context, ids []string) ([]models.Image, error)
	ListImages(ctx context.Context, f models.ImageFilter) ([]models.Image, error)

	// Totals counts users, images and events.
	Totals(ctx context.Context) (models.Totals, error)

	// ValidID reports whether id is well-formed for this store.
	ValidID(id string) bool
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// orderByIDs returns the images of byID in the order of ids, skipping ids that
// did not resolve. Repeated ids yield repeated entries.
func orderByIDs(ids []string, byID map[string]models.Image) []models.Image {
	out := make([]models.Image, 0, len(ids))
	for _, id := range ids {
		if img, ok := byID[id]; ok {
			out = append(out, img)
		}
	}
	return out
}
