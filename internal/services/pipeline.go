package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"caidasapi/internal/apperr"
	"caidasapi/internal/database"
	"caidasapi/internal/imagehost"
	"caidasapi/internal/models"
	"caidasapi/internal/observability"
)

// IngestRequest describes one image to ingest.
type IngestRequest struct {
	// Source is an http(s) URL or a local file path.
	Source      string
	Description string
	// EventID optionally links the image to an existing event.
	EventID string
	// Temporary marks Source as a staged upload that Ingest removes when done.
	Temporary bool
	// OriginalName is recorded instead of Source for staged uploads.
	OriginalName string
}

// PipelineOptions tunes the network timeouts of the pipeline.
type PipelineOptions struct {
	UploadTimeout time.Duration
	ProbeTimeout  time.Duration
}

// Pipeline validates image sources, hands them to the image host and records
// the outcome.
type Pipeline struct {
	store         database.Store
	events        *Events
	host          imagehost.Host
	metrics       *observability.Metrics
	logger        *zap.Logger
	probe         *http.Client
	uploadTimeout time.Duration
	now           func() time.Time
}

// NewPipeline wires the pipeline to its store, event service and image host.
// metrics may be nil. Zero timeouts disable the upload deadline and the probe
// client timeout.
func NewPipeline(store database.Store, events *Events, host imagehost.Host, metrics *observability.Metrics, logger *zap.Logger, opts PipelineOptions) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:         store,
		events:        events,
		host:          host,
		metrics:       metrics,
		logger:        logger,
		probe:         &http.Client{Timeout: opts.ProbeTimeout},
		uploadTimeout: opts.UploadTimeout,
		now:           time.Now,
	}
}

// Ingest runs the whole upload workflow for req. On image host failure a
// degraded record is stored and an upstream error returned. Nothing is retried.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*models.Image, error) {
	if req.Temporary {
		defer p.cleanupFile(req.Source)
	}

	img, result, err := p.ingest(ctx, req)
	p.metrics.ObserveIngest(result)
	return img, err
}

func (p *Pipeline) ingest(ctx context.Context, req IngestRequest) (*models.Image, string, error) {
	log := p.logger.With(zap.String("event_id", req.EventID))

	if req.EventID != "" {
		if err := p.CheckEvent(ctx, req.EventID); err != nil {
			result := observability.IngestRejected
			if apperr.Is(err, apperr.KindUpstream) {
				result = observability.IngestStoreErr
			}
			return nil, result, err
		}
	}

	sourceType, err := p.validateSource(ctx, req.Source)
	if err != nil {
		log.Info("image source rejected", zap.String("source", p.displaySource(req)), zap.Error(err))
		return nil, observability.IngestRejected, err
	}

	uploadedAt := p.now().UTC()
	publicID := "imagen_" + uploadedAt.Format("20060102_150405")
	log = log.With(zap.String("public_id", publicID))

	uploadCtx := ctx
	if p.uploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, p.uploadTimeout)
		defer cancel()
	}

	asset, err := p.host.Upload(uploadCtx, req.Source, publicID)
	if err != nil {
		log.Error("image host upload failed", zap.Error(err))
		degraded := &models.Image{
			Description:  req.Description,
			UploadedAt:   uploadedAt,
			SourceType:   sourceType,
			Source:       p.displaySource(req),
			Status:       models.ImageStatusError,
			ErrorMessage: err.Error(),
		}
		if serr := p.store.CreateImage(ctx, degraded); serr != nil {
			log.Error("could not record failed upload", zap.Error(serr))
		}
		return nil, observability.IngestHostError, apperr.Upstream("image host upload failed", err)
	}

	img := &models.Image{
		Description: req.Description,
		UploadedAt:  uploadedAt,
		SourceType:  sourceType,
		Source:      p.displaySource(req),
		URLs:        &asset.URLs,
		HostID:      asset.PublicID,
		Metadata: &models.ImageMetadata{
			Format:   asset.Format,
			ByteSize: asset.Bytes,
			Width:    asset.Width,
			Height:   asset.Height,
		},
		LinkedEventID: req.EventID,
		Status:        models.ImageStatusProcessed,
	}
	if err := p.store.CreateImage(ctx, img); err != nil {
		// The hosted asset stays behind; there is no compensating delete.
		log.Error("image record not saved, hosted asset orphaned", zap.Error(err))
		return nil, observability.IngestStoreErr, apperr.Upstream("could not save image record", err)
	}

	if req.EventID != "" {
		if err := p.events.AppendImage(ctx, req.EventID, img.ID); err != nil {
			log.Error("image not linked to event", zap.String("image_id", img.ID), zap.Error(err))
			return nil, observability.IngestStoreErr, err
		}
	}

	log.Info("image ingested",
		zap.String("image_id", img.ID),
		zap.String("source_type", sourceType),
		zap.Int64("bytes", asset.Bytes),
	)
	return img, observability.IngestProcessed, nil
}

// CheckEvent fails with a validation error for a malformed id and a not-found
// error when no event has that id. Callers staging an upload run it first so a
// bad link is reported before anything is written.
func (p *Pipeline) CheckEvent(ctx context.Context, eventID string) error {
	if !p.store.ValidID(eventID) {
		return apperr.Validation("invalid caida_id")
	}
	ok, err := p.events.Exists(ctx, eventID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("event not found")
	}
	return nil
}

// validateSource checks a remote URL with a HEAD probe or a local path on disk
// and returns the source type.
func (p *Pipeline) validateSource(ctx context.Context, source string) (string, error) {
	if source == "" {
		return "", apperr.Validation("an image file or url is required")
	}

	if strings.Contains(source, "://") {
		return models.SourceRemoteURL, p.probeURL(ctx, source)
	}

	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperr.Validation("image file not found")
		}
		return "", apperr.Wrap(apperr.KindValidation, "image file not readable", err)
	}
	if !info.Mode().IsRegular() {
		return "", apperr.Validation("image source is not a regular file")
	}
	if _, ok := ImageContentType(source); !ok {
		return "", apperr.Validation("file type not allowed, use png, jpg, jpeg or gif")
	}
	return models.SourceLocalFile, nil
}

func (p *Pipeline) probeURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Validation("invalid image url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid image url", err)
	}
	resp, err := p.probe.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "image url is not reachable", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.Validation(fmt.Sprintf("image url returned status %d", resp.StatusCode))
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "image/") {
		return apperr.Validation(fmt.Sprintf("url does not point to an image (content-type %q)", ct))
	}
	return nil
}

func (p *Pipeline) displaySource(req IngestRequest) string {
	if req.Temporary && req.OriginalName != "" {
		return req.OriginalName
	}
	return req.Source
}

// ListImages returns image records, optionally only those linked to an event
// or whose description contains a term.
func (p *Pipeline) ListImages(ctx context.Context, f models.ImageFilter) ([]models.Image, error) {
	if f.EventID != "" && !p.store.ValidID(f.EventID) {
		return nil, apperr.Validation("invalid caida_id")
	}
	f.Description = strings.TrimSpace(f.Description)
	images, err := p.store.ListImages(ctx, f)
	if err != nil {
		return nil, apperr.Upstream("could not list images", err)
	}
	return images, nil
}

func (p *Pipeline) cleanupFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("could not remove temporary upload", zap.String("path", path), zap.Error(err))
		return
	}
	p.logger.Debug("temporary upload removed", zap.String("path", path))
}
