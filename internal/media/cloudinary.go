package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"reelshare/internal/config"
	"reelshare/internal/models"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// ErrNotConfigured is returned when Cloudinary credentials are missing.
var ErrNotConfigured = errors.New("cloudinary configuration is missing")

// CloudinaryUploader stores media on Cloudinary.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryUploader creates an uploader from the CLOUDINARY_* settings.
func NewCloudinaryUploader(cfg *config.Config) (*CloudinaryUploader, error) {
	if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
		return nil, ErrNotConfigured
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	folder := cfg.CloudinaryFolder
	if folder == "" {
		folder = "reelshare"
	}
	return &CloudinaryUploader{cld: cld, folder: folder}, nil
}

// Upload sends r to Cloudinary under <folder>/videos or <folder>/images.
func (u *CloudinaryUploader) Upload(ctx context.Context, r io.Reader, name string, kind models.EntityType) (string, error) {
	collection, ok := kind.Collection()
	if !ok {
		return "", fmt.Errorf("unsupported media kind %q", kind)
	}
	overwrite := false
	res, err := u.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     publicID(name),
		Folder:       u.folder + "/" + collection.String(),
		Overwrite:    &overwrite,
		ResourceType: string(kind),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

// Thumbnail returns the JPEG still Cloudinary renders for a video URL.
func (u *CloudinaryUploader) Thumbnail(videoURL string) string {
	return strings.TrimSuffix(videoURL, path.Ext(videoURL)) + ".jpg"
}

// publicID keeps the file's base name readable and makes it unique.
func publicID(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	suffix := uuid.NewString()[:8]
	if strings.Trim(base, "_") == "" {
		return suffix
	}
	return base + "-" + suffix
}
