package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"facilityops/internal/common"
	"facilityops/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxPicturesPerRequest = 20

// UploadFile is one picture taken from a multipart request. The caller owns
// Content and closes it.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type ImageUploader interface {
	// Upload stores every file or none of them and returns one public URL
	// per file, in input order.
	Upload(ctx context.Context, files []UploadFile) ([]string, error)
	// Remove deletes the objects behind urls that point into our bucket.
	// Failures are logged, never returned.
	Remove(ctx context.Context, urls []string)
}

type imageUploader struct {
	store     MinioService
	bucket    string
	publicURL string
	maxSize   int64
	logger    *zap.Logger
	now       func() time.Time
}

func NewImageUploader(store MinioService, cfg config.MinIOConfig, logger *zap.Logger) ImageUploader {
	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}
	return &imageUploader{
		store:     store,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
		maxSize:   cfg.MaxUploadMB << 20,
		logger:    logger,
		now:       time.Now,
	}
}

func (u *imageUploader) validate(files []UploadFile) error {
	var v common.ValidationErrors
	if len(files) > MaxPicturesPerRequest {
		v.Add("pictures", "too_many", fmt.Sprintf("At most %d pictures may be uploaded at once", MaxPicturesPerRequest))
		return v.Err()
	}
	for i, f := range files {
		field := fmt.Sprintf("pictures[%d]", i)
		mediaType, _, err := mime.ParseMediaType(f.ContentType)
		if err != nil || !strings.HasPrefix(mediaType, "image/") {
			v.Add(field, "invalid_type", fmt.Sprintf("%s is not an image", f.Filename))
			continue
		}
		if u.maxSize > 0 && f.Size > u.maxSize {
			v.Add(field, "too_large", fmt.Sprintf("%s exceeds the %d MB limit", f.Filename, u.maxSize>>20))
		}
	}
	return v.Err()
}

func (u *imageUploader) Upload(ctx context.Context, files []UploadFile) ([]string, error) {
	if len(files) == 0 {
		return []string{}, nil
	}
	if err := u.validate(files); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(files))
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key := u.objectKey(f)
		if err := u.store.PutObject(ctx, u.bucket, key, f.Content, f.Size, f.ContentType); err != nil {
			u.removeKeys(context.WithoutCancel(ctx), keys)
			return nil, common.NewUpstreamError("Failed to upload pictures", fmt.Errorf("put %s: %w", key, err))
		}
		keys = append(keys, key)
		urls = append(urls, u.publicURL+"/"+u.bucket+"/"+key)
	}

	u.logger.Debug("pictures uploaded", zap.Int("count", len(urls)))
	return urls, nil
}

func (u *imageUploader) Remove(ctx context.Context, urls []string) {
	keys := make([]string, 0, len(urls))
	for _, raw := range urls {
		if key, ok := u.objectKeyFromURL(raw); ok {
			keys = append(keys, key)
		}
	}
	u.removeKeys(ctx, keys)
}

func (u *imageUploader) removeKeys(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := u.store.RemoveObject(ctx, u.bucket, key); err != nil {
			u.logger.Warn("failed to remove picture", zap.String("key", key), zap.Error(err))
		}
	}
}

// objectKey returns workorders/<yyyy>/<mm>/<uuid><ext>.
func (u *imageUploader) objectKey(f UploadFile) string {
	now := u.now().UTC()
	ext := strings.ToLower(filepath.Ext(f.Filename))
	if ext == "" {
		if exts, err := mime.ExtensionsByType(f.ContentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return path.Join("workorders", fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())), uuid.NewString()+ext)
}

func (u *imageUploader) objectKeyFromURL(raw string) (string, bool) {
	prefix := u.publicURL + "/" + u.bucket + "/"
	if !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(raw, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
