package imagehost

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"

	"caidasapi/internal/config"
)

// Transformations. Crop and gravity "auto" let the host pick the subject.
var (
	optimizedTransformation = "f_auto,q_auto"
	thumbnailTransformation = fmt.Sprintf("w_%d,h_%d,c_auto,g_auto", ThumbnailSize, ThumbnailSize)
	eagerTransformations    = thumbnailTransformation + "|" +
		fmt.Sprintf("w_%d,h_%d,c_auto,g_auto", LargeSize, LargeSize)
)

// Cloudinary hosts images on cloudinary.com.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	logger *zap.Logger
}

// NewCloudinary builds a client from the account credentials. Delivery URLs
// use https.
func NewCloudinary(cfg config.CloudinaryConfig, logger *zap.Logger) (*Cloudinary, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("cloudinary credentials are incomplete")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("creating cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cloudinary{cld: cld, logger: logger}, nil
}

// Upload sends source to Cloudinary, which fetches remote URLs itself, and asks
// for the eager renditions in the same call.
func (c *Cloudinary) Upload(ctx context.Context, source, publicID string) (*Asset, error) {
	c.logger.Debug("uploading to cloudinary", zap.String("public_id", publicID))

	resp, err := c.cld.Upload.Upload(ctx, source, uploader.UploadParams{
		PublicID:     publicID,
		Overwrite:    api.Bool(true),
		ResourceType: "image",
		Eager:        eagerTransformations,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload %s: %w", publicID, err)
	}
	// API-level failures come back in the response body with a nil error.
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload %s: %s", publicID, resp.Error.Message)
	}

	optimized, err := c.derivedURL(resp.PublicID, optimizedTransformation)
	if err != nil {
		return nil, err
	}
	thumbnail, err := c.derivedURL(resp.PublicID, thumbnailTransformation)
	if err != nil {
		return nil, err
	}

	asset := &Asset{
		PublicID: resp.PublicID,
		Format:   resp.Format,
		Bytes:    int64(resp.Bytes),
		Width:    resp.Width,
		Height:   resp.Height,
	}
	asset.URLs.Original = resp.SecureURL
	asset.URLs.Optimized = optimized
	asset.URLs.Thumbnail = thumbnail
	return asset, nil
}

func (c *Cloudinary) derivedURL(publicID, transformation string) (string, error) {
	img, err := c.cld.Image(publicID)
	if err != nil {
		return "", fmt.Errorf("building url for %s: %w", publicID, err)
	}
	img.Transformation = transformation

	u, err := img.String()
	if err != nil {
		return "", fmt.Errorf("building url for %s: %w", publicID, err)
	}
	return u, nil
}
