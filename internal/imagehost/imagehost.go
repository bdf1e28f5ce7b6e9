// Package imagehost uploads images to a hosting provider that derives the
// optimized and thumbnail renditions.
package imagehost

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"caidasapi/internal/config"
	"caidasapi/internal/models"
)

// Rendition sizes requested eagerly on every upload.
const (
	ThumbnailSize = 500
	LargeSize     = 1000
)

// Asset describes an uploaded image.
type Asset struct {
	PublicID string
	URLs     models.HostedURLs
	Format   string
	Bytes    int64
	Width    int
	Height   int
}

// Host uploads a source, either a local file path or an http(s) URL, under publicID.
// An existing asset with the same public id is overwritten.
type Host interface {
	Upload(ctx context.Context, source, publicID string) (*Asset, error)
}

// New builds the provider selected in cfg. baseURL is the public address of
// this server, used by the local provider for its /media links.
func New(cfg config.ImageHostConfig, baseURL string, logger *zap.Logger) (Host, error) {
	switch cfg.Provider {
	case config.ProviderCloudinary:
		return NewCloudinary(cfg.Cloudinary, logger)
	case config.ProviderLocal:
		return NewLocal(cfg.Local.Dir, baseURL+MediaPrefix, cfg.Local.Quality, logger)
	default:
		return nil, fmt.Errorf("unknown image host provider %q", cfg.Provider)
	}
}
