package models

import (
	"time"
)

// Image statuses.
const (
	ImageStatusProcessed = "processed"
	ImageStatusError     = "error"
)

// Image source types.
const (
	SourceRemoteURL = "url"
	SourceLocalFile = "local"
)

// User is a registered account. Email is the unique key.
// PasswordHash is never sent to clients.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// UserUpdate carries the profile fields that may change after registration.
// A nil field is left untouched.
type UserUpdate struct {
	Name         *string
	PasswordHash *string
	Phone        *string
}

// Empty reports whether the update names no field at all.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.PasswordHash == nil && u.Phone == nil
}

// HostedURLs are the addresses the image host derived from an upload.
type HostedURLs struct {
	Original  string `json:"original"`
	Optimized string `json:"optimized"`
	Thumbnail string `json:"thumbnail"`
}

// ImageMetadata describes the hosted asset.
type ImageMetadata struct {
	Format   string `json:"format"`
	ByteSize int64  `json:"byte_size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Image is the record of one ingest attempt. A record with Status == ImageStatusError
// carries no hosted data, only ErrorMessage.
type Image struct {
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	UploadedAt    time.Time      `json:"uploaded_at"`
	SourceType    string         `json:"source_type"`
	Source        string         `json:"source,omitempty"`
	URLs          *HostedURLs    `json:"urls,omitempty"`
	HostID        string         `json:"host_id,omitempty"`
	Metadata      *ImageMetadata `json:"metadata,omitempty"`
	LinkedEventID string         `json:"caida_id,omitempty"`
	Status        string         `json:"status"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// ImageFilter narrows image listings. Empty fields match everything.
// Description matches as a case-insensitive substring.
type ImageFilter struct {
	EventID     string
	Description string
}

// Event is a recorded fall ("caída"). ImageIDs is append-only and may contain
// ids whose image records were later removed.
type Event struct {
	ID         string    `json:"id"`
	Category   string    `json:"category,omitempty"`
	Severity   string    `json:"severity"`
	Location   string    `json:"location"`
	Details    string    `json:"details,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	ImageIDs   []string  `json:"image_ids"`
}

// EventFilter is an equality predicate over events. Empty fields match everything.
type EventFilter struct {
	ID       string
	Category string
	Severity string
	Location string
}

// ImageSummary is the resolved view of a linked image used in event listings.
type ImageSummary struct {
	ID           string `json:"id"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
	OptimizedURL string `json:"optimized_url"`
}

// EventView is an event together with its resolvable images.
type EventView struct {
	Event
	Images []ImageSummary `json:"images"`
}

// Totals counts the stored records of each kind.
type Totals struct {
	Users  int64 `json:"users"`
	Images int64 `json:"images"`
	Events int64 `json:"events"`
}
