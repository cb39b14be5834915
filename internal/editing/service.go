package editing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/camagru/camagru/internal/compositor"
	"github.com/camagru/camagru/internal/database"
	"github.com/camagru/camagru/internal/events"
	"github.com/camagru/camagru/internal/logging"
	"github.com/camagru/camagru/internal/metrics"
	"github.com/camagru/camagru/internal/storage"
	"github.com/camagru/camagru/internal/tracing"
	"github.com/camagru/camagru/pkg/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a photo does not exist or is not owned by the caller
	ErrNotFound = errors.New("photo not found")

	// ErrStorage wraps failures of the save sink
	ErrStorage = errors.New("failed to store image")
)

// Repository is the persistence the editing service needs
type Repository interface {
	ListStickers(ctx context.Context) ([]*models.Sticker, error)
	GetSticker(ctx context.Context, id int64) (*models.Sticker, error)
	ListUserPhotos(ctx context.Context, userID int64) ([]*models.Photo, error)
	CreatePhoto(ctx context.Context, photo *models.Photo) error
	GetUserPhoto(ctx context.Context, photoID, userID int64) (*models.Photo, error)
	DeletePhoto(ctx context.Context, photoID, userID int64) error
}

// StickerCache fronts sticker lookups. A miss returns nil, nil.
type StickerCache interface {
	GetStickers(ctx context.Context) ([]*models.Sticker, error)
	SetStickers(ctx context.Context, stickers []*models.Sticker, ttl time.Duration) error
	GetSticker(ctx context.Context, id int64) (*models.Sticker, error)
	SetSticker(ctx context.Context, sticker *models.Sticker, ttl time.Duration) error
}

// Config holds editing service settings
type Config struct {
	// AssetsDir is the directory sticker file paths are relative to
	AssetsDir  string
	StickerTTL time.Duration
	MaxFrames  int
}

// SaveRequest is a single photo to composite and publish
type SaveRequest struct {
	ImageData string                 `json:"imageData" binding:"required"`
	Stickers  []compositor.Placement `json:"stickers"`
	Mirrored  *bool                  `json:"mirrored,omitempty"`
}

// GIFRequest is an animation to composite and publish
type GIFRequest struct {
	Frames     []string               `json:"frames" binding:"required,min=2"`
	FrameDelay int                    `json:"frameDelay"`
	Stickers   []compositor.Placement `json:"stickers"`
	Mirrored   *bool                  `json:"mirrored,omitempty"`
}

// The webcam preview is mirrored unless the client says otherwise
func mirrored(m *bool) bool {
	return m == nil || *m
}

// Service orchestrates the compositing pipeline and photo persistence
type Service struct {
	repo      Repository
	cache     StickerCache
	sink      storage.Sink
	events    events.Publisher
	comp      *compositor.Compositor
	resolver  *compositor.Resolver
	assembler *compositor.Assembler
	cfg       Config
	logger    *logging.Logger
}

// NewService creates an editing service. cache may be nil.
func NewService(repo Repository, cache StickerCache, sink storage.Sink, publisher events.Publisher,
	comp *compositor.Compositor, cfg Config, logger *logging.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	s := &Service{
		repo:      repo,
		cache:     cache,
		sink:      sink,
		events:    publisher,
		comp:      comp,
		assembler: compositor.NewAssembler(comp),
		cfg:       cfg,
		logger:    logger.WithComponent("editing"),
	}
	s.resolver = compositor.NewResolver(assetLookup{s}, comp)
	return s
}

// ListStickers returns the sticker catalogue
func (s *Service) ListStickers(ctx context.Context) ([]*models.Sticker, error) {
	if s.cache != nil {
		stickers, err := s.cache.GetStickers(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Sticker cache read failed")
		}
		metrics.RecordCacheAccess("stickers", stickers != nil)
		if stickers != nil {
			return stickers, nil
		}
	}

	stickers, err := s.repo.ListStickers(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetStickers(ctx, stickers, s.cfg.StickerTTL); err != nil {
			s.logger.WithError(err).Warn("Sticker cache write failed")
		}
	}
	return stickers, nil
}

// ListUserPhotos returns the photos of one user, newest first
func (s *Service) ListUserPhotos(ctx context.Context, userID int64) ([]*models.Photo, error) {
	return s.repo.ListUserPhotos(ctx, userID)
}

// SavePhoto composites a single image and publishes it
func (s *Service) SavePhoto(ctx context.Context, userID int64, req SaveRequest) (photo *models.Photo, err error) {
	if strings.TrimSpace(req.ImageData) == "" {
		return nil, fmt.Errorf("%w: image data is required", compositor.ErrInvalidInput)
	}

	span, ctx := tracing.StartSpan(ctx, "editing.SavePhoto")
	tracing.SetTag(span, "user_id", userID)
	tracing.SetTag(span, "stickers", len(req.Stickers))
	start := time.Now()
	defer func() {
		tracing.FinishSpan(span, err)
		s.observe("photo", 1, len(req.Stickers), time.Since(start), userID, err)
	}()

	out, err := s.render(ctx, req)
	if err != nil {
		return nil, err
	}

	encoded, err := compositor.EncodePNG(out)
	if err != nil {
		return nil, err
	}
	thumb, err := compositor.EncodePNG(s.comp.Thumbnail(out))
	if err != nil {
		return nil, err
	}

	name := uuid.NewString()
	key := storage.PhotoKey(name + ".png")
	if err := s.put(ctx, key, bytes.NewReader(encoded), int64(len(encoded)), "image/png"); err != nil {
		return nil, err
	}

	photo, err = s.finish(ctx, userID, name, key, thumb, false)
	if err != nil {
		return nil, err
	}

	metrics.RecordPhotoCreated("photo", int64(len(encoded)))
	return photo, nil
}

// Preview composites a single image without storing it and returns it as a
// PNG data URL
func (s *Service) Preview(ctx context.Context, userID int64, req SaveRequest) (imageData string, err error) {
	if strings.TrimSpace(req.ImageData) == "" {
		return "", fmt.Errorf("%w: image data is required", compositor.ErrInvalidInput)
	}

	span, ctx := tracing.StartSpan(ctx, "editing.Preview")
	tracing.SetTag(span, "user_id", userID)
	start := time.Now()
	defer func() {
		tracing.FinishSpan(span, err)
		s.observe("preview", 1, len(req.Stickers), time.Since(start), userID, err)
	}()

	out, err := s.render(ctx, req)
	if err != nil {
		return "", err
	}
	return compositor.EncodeDataURL(out)
}

// render decodes the captured image and lays the requested stickers over it
func (s *Service) render(ctx context.Context, req SaveRequest) (*image.NRGBA, error) {
	src, err := s.comp.Decode(ctx, compositor.DataURL(req.ImageData))
	if err != nil {
		return nil, err
	}

	stickers, err := s.resolver.Resolve(ctx, req.Stickers, mirrored(req.Mirrored))
	if err != nil {
		return nil, err
	}

	return s.comp.Composite(ctx, src, stickers)
}

// CreateGIF composites every frame with the same stickers and publishes the
// resulting animation. The thumbnail shows the first composited frame.
func (s *Service) CreateGIF(ctx context.Context, userID int64, req GIFRequest) (photo *models.Photo, err error) {
	if len(req.Frames) < compositor.MinFrames {
		return nil, fmt.Errorf("%w: at least %d frames are required", compositor.ErrInvalidInput, compositor.MinFrames)
	}
	if s.cfg.MaxFrames > 0 && len(req.Frames) > s.cfg.MaxFrames {
		return nil, fmt.Errorf("%w: at most %d frames are allowed", compositor.ErrInvalidInput, s.cfg.MaxFrames)
	}

	span, ctx := tracing.StartSpan(ctx, "editing.CreateGIF")
	tracing.SetTag(span, "user_id", userID)
	tracing.SetTag(span, "frames", len(req.Frames))
	start := time.Now()
	defer func() {
		tracing.FinishSpan(span, err)
		s.observe("gif", len(req.Frames), len(req.Stickers), time.Since(start), userID, err)
	}()

	stickers, err := s.resolver.Resolve(ctx, req.Stickers, mirrored(req.Mirrored))
	if err != nil {
		return nil, err
	}

	frames := make([]compositor.Source, len(req.Frames))
	for i, f := range req.Frames {
		frames[i] = compositor.DataURL(f)
	}
	delay := time.Duration(req.FrameDelay) * time.Millisecond

	name := uuid.NewString()
	key := storage.PhotoKey(name + ".gif")

	first, size, err := s.streamGIF(ctx, key, frames, delay, stickers)
	if err != nil {
		return nil, err
	}

	thumb, err := compositor.EncodePNG(s.comp.Thumbnail(first))
	if err != nil {
		s.remove(ctx, key)
		return nil, err
	}

	photo, err = s.finish(ctx, userID, name, key, thumb, true)
	if err != nil {
		return nil, err
	}

	metrics.RecordPhotoCreated("gif", size)
	return photo, nil
}

// streamGIF pipes the assembler output into the sink and only returns once
// the sink has finished with the stream
func (s *Service) streamGIF(ctx context.Context, key string, frames []compositor.Source, delay time.Duration,
	stickers []compositor.Sticker) (image.Image, int64, error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)

	start := time.Now()
	go func() {
		err := s.sink.Put(ctx, key, pr, -1, "image/gif")
		pr.CloseWithError(err)
		done <- err
	}()

	cw := &countingWriter{w: pw}
	first, assembleErr := s.assembler.Assemble(ctx, cw, frames, delay, stickers)
	pw.CloseWithError(assembleErr)
	putErr := <-done

	s.logger.LogStorageOperation("put", "uploads", key, cw.n, time.Since(start), putErr)
	metrics.RecordStorageOperation("put", storageStatus(putErr), time.Since(start).Seconds(), cw.n)

	switch {
	case cw.err != nil && putErr != nil:
		// the sink gave up first and closed the pipe under the assembler
		s.remove(ctx, key)
		return nil, 0, fmt.Errorf("%w: %v", ErrStorage, putErr)
	case assembleErr != nil:
		s.remove(ctx, key)
		return nil, 0, assembleErr
	case putErr != nil:
		s.remove(ctx, key)
		return nil, 0, fmt.Errorf("%w: %v", ErrStorage, putErr)
	}
	return first, cw.n, nil
}

// finish stores the thumbnail and inserts the row. The primary file at key
// already exists and is removed again on failure.
func (s *Service) finish(ctx context.Context, userID int64, name, key string, thumb []byte, isGIF bool) (*models.Photo, error) {
	thumbKey := storage.ThumbnailKey(name + ".png")
	if err := s.put(ctx, thumbKey, bytes.NewReader(thumb), int64(len(thumb)), "image/png"); err != nil {
		s.remove(ctx, key)
		return nil, err
	}

	photo := &models.Photo{
		UserID:        userID,
		FilePath:      storage.PublicPath(key),
		ThumbnailPath: storage.PublicPath(thumbKey),
		IsGIF:         isGIF,
	}
	if err := s.repo.CreatePhoto(ctx, photo); err != nil {
		s.remove(ctx, key, thumbKey)
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.PhotoCreated, UserID: userID, PhotoID: photo.ID, IsGIF: isGIF})
	return photo, nil
}

// DeletePhoto removes one of the caller's photos. Missing files are not an
// error; a missing or foreign row is ErrNotFound.
func (s *Service) DeletePhoto(ctx context.Context, userID, photoID int64) error {
	photo, err := s.repo.GetUserPhoto(ctx, photoID, userID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if err := s.repo.DeletePhoto(ctx, photoID, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	for _, p := range []string{photo.FilePath, photo.ThumbnailPath} {
		key, ok := storage.KeyFromPath(p)
		if !ok {
			s.logger.WithPhotoID(photoID).WithField("path", p).Warn("Photo path outside storage, skipping file removal")
			continue
		}
		s.remove(ctx, key)
	}

	metrics.RecordPhotoDeleted()
	s.publish(ctx, events.Event{Type: events.PhotoDeleted, UserID: userID, PhotoID: photoID, IsGIF: photo.IsGIF})
	return nil
}

func (s *Service) put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	start := time.Now()
	err := s.sink.Put(ctx, key, r, size, contentType)
	s.logger.LogStorageOperation("put", "uploads", key, size, time.Since(start), err)
	metrics.RecordStorageOperation("put", storageStatus(err), time.Since(start).Seconds(), size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// remove deletes keys even when the request context is already cancelled
func (s *Service) remove(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.sink.Delete(ctx, key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Failed to remove stored file")
		}
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	err := s.events.Publish(ctx, event)
	metrics.RecordEventPublished(event.Type, err)
	if err != nil {
		s.logger.WithError(err).WithField("event", event.Type).Warn("Failed to publish activity event")
	}
}

func (s *Service) observe(kind string, frames, stickers int, d time.Duration, userID int64, err error) {
	metrics.RecordCompositing(kind, frames, stickers, d.Seconds(), err)
	l := s.logger.WithUserID(userID)
	if err != nil && compositor.IsBadInput(err) {
		// Client mistakes are not pipeline failures
		l.WithError(err).Infof("Rejected %s request", kind)
		return
	}
	l.LogCompositing(kind, frames, stickers, d, err)
}

func storageStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// countingWriter counts bytes and keeps the first write error
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}

// assetLookup resolves sticker ids through the cache and repository
type assetLookup struct {
	s *Service
}

func (a assetLookup) StickerPath(ctx context.Context, id int64) (string, error) {
	sticker, err := a.s.sticker(ctx, id)
	if err != nil {
		return "", err
	}
	rel := filepath.FromSlash(strings.TrimPrefix(sticker.FilePath, "/"))
	return filepath.Join(a.s.cfg.AssetsDir, rel), nil
}

func (s *Service) sticker(ctx context.Context, id int64) (*models.Sticker, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSticker(ctx, id)
		metrics.RecordCacheAccess("sticker", cached != nil)
		if err == nil && cached != nil {
			return cached, nil
		}
	}

	sticker, err := s.repo.GetSticker(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, compositor.ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetSticker(ctx, sticker, s.cfg.StickerTTL); err != nil {
			s.logger.WithError(err).Warn("Sticker cache write failed")
		}
	}
	return sticker, nil
}
