package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// MediaPrefix is the route the server exposes the local media directory under.
const MediaPrefix = "/media"

// maxSourceBytes caps how much of a source is read into memory.
const maxSourceBytes = 32 << 20

// Local renders renditions in-process and stores them under a directory that the
// API serves at MediaPrefix. It stands in for a hosting service in development.
type Local struct {
	dir     string
	baseURL string
	quality int
	client  *http.Client
	logger  *zap.Logger
}

// NewLocal creates dir if needed. baseURL is the public URL of the media route,
// e.g. http://localhost:5000/media.
func NewLocal(dir, baseURL string, quality int, logger *zap.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory %s: %w", dir, err)
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		quality: quality,
		client:  &http.Client{},
		logger:  logger,
	}, nil
}

// Dir is the directory the renditions are written to.
func (l *Local) Dir() string {
	return l.dir
}

// Upload decodes source and writes the original, an optimized JPEG and the two
// square renditions under publicID.
func (l *Local) Upload(ctx context.Context, source, publicID string) (*Asset, error) {
	data, err := l.read(ctx, source)
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", publicID, err)
	}

	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}

	originalName := publicID + "." + ext
	if err := os.WriteFile(filepath.Join(l.dir, originalName), data, 0o644); err != nil {
		return nil, fmt.Errorf("writing original %s: %w", originalName, err)
	}

	optimizedName := publicID + "-opt.jpg"
	if err := l.save(img, optimizedName); err != nil {
		return nil, err
	}

	thumbName, err := l.saveFill(img, publicID, ThumbnailSize)
	if err != nil {
		return nil, err
	}
	if _, err := l.saveFill(img, publicID, LargeSize); err != nil {
		return nil, err
	}

	b := img.Bounds()
	asset := &Asset{
		PublicID: publicID,
		Format:   format,
		Bytes:    int64(len(data)),
		Width:    b.Dx(),
		Height:   b.Dy(),
	}
	asset.URLs.Original = l.url(originalName)
	asset.URLs.Optimized = l.url(optimizedName)
	asset.URLs.Thumbnail = l.url(thumbName)

	l.logger.Debug("stored local renditions",
		zap.String("public_id", publicID),
		zap.String("format", format),
		zap.Int("width", asset.Width),
		zap.Int("height", asset.Height),
	)
	return asset, nil
}

func (l *Local) read(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening source: %w", err)
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxSourceBytes))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", source, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", source, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
}

// saveFill writes a size×size center crop, like the host's eager renditions.
func (l *Local) saveFill(img image.Image, publicID string, size int) (string, error) {
	name := fmt.Sprintf("%s-w%d-h%d.jpg", publicID, size, size)
	return name, l.save(imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos), name)
}

func (l *Local) save(img image.Image, name string) error {
	if err := imaging.Save(img, filepath.Join(l.dir, name), imaging.JPEGQuality(l.quality)); err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	return nil
}

func (l *Local) url(name string) string {
	return l.baseURL + "/" + name
}
