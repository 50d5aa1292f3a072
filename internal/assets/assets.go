// Package assets stores files attached to sections in S3-compatible object
// storage and hands out presigned download URLs.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"arp/api/internal/section"
	"arp/api/internal/util"
)

const (
	DefaultURLExpiry = 24 * time.Hour
	MaxUploadBytes   = 25 << 20
)

var (
	ErrEmptyUpload = errors.New("empty upload")
	ErrTooLarge    = errors.New("upload too large")
)

// ObjectStore is the object storage the service writes to.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

type Service struct {
	store  ObjectStore
	expiry time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewService(store ObjectStore, expiry time.Duration, logger zerolog.Logger) *Service {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &Service{
		store:  store,
		expiry: expiry,
		now:    time.Now,
		log:    logger.With().Str("component", "assets").Logger(),
	}
}

// Upload stores r under the owner and section and returns the asset record to
// attach to the section.
func (s *Service) Upload(ctx context.Context, ownerID, sectionID, name, contentType string, r io.Reader, size int64) (section.Asset, error) {
	if size == 0 {
		return section.Asset{}, ErrEmptyUpload
	}
	if size > MaxUploadBytes {
		return section.Asset{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	name = cleanName(name)
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id := util.NewID("ast")
	key := ObjectKey(ownerID, sectionID, id, name)
	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return section.Asset{}, fmt.Errorf("put object: %w", err)
	}
	url, err := s.store.PresignedURL(ctx, key, s.expiry)
	if err != nil {
		return section.Asset{}, fmt.Errorf("presign object: %w", err)
	}

	uploaded := s.now().UTC()
	s.log.Info().Str("owner", ownerID).Str("section", sectionID).Str("key", key).Int64("size", size).Msg("asset uploaded")
	return section.Asset{
		ID:         id,
		Name:       name,
		URL:        url,
		Type:       contentType,
		Size:       size,
		UploadedAt: &uploaded,
	}, nil
}

// Refresh returns a new presigned URL for an uploaded asset.
func (s *Service) Refresh(ctx context.Context, ownerID, sectionID string, a section.Asset) (section.Asset, error) {
	url, err := s.store.PresignedURL(ctx, ObjectKey(ownerID, sectionID, a.ID, a.Name), s.expiry)
	if err != nil {
		return a, fmt.Errorf("presign object: %w", err)
	}
	a.URL = url
	return a, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, sectionID string, a section.Asset) error {
	if err := s.store.Remove(ctx, ObjectKey(ownerID, sectionID, a.ID, a.Name)); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// ObjectKey is owner/section/asset-id/name with every segment cleaned.
func ObjectKey(ownerID, sectionID, assetID, name string) string {
	return path.Join(segment(ownerID), segment(sectionID), segment(assetID), cleanName(name))
}

func segment(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

func cleanName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}
