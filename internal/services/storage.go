package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// StoredFile identifies an uploaded object.
type StoredFile struct {
	URL      string
	PublicID string
}

// FileStorage keeps user-supplied files (bug report attachments, doctor photos).
type FileStorage interface {
	Upload(ctx context.Context, folder, filename string, r io.Reader) (StoredFile, error)
	Delete(ctx context.Context, publicID string) error
}

type CloudinaryConfig struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
	// RootFolder prefixes every upload folder.
	RootFolder string
}

// CloudinaryStorage stores files in Cloudinary.
type CloudinaryStorage struct {
	cld  *cloudinary.Cloudinary
	root string
}

// NewCloudinaryStorage prefers CLOUDINARY_URL and falls back to the individual credentials.
func NewCloudinaryStorage(cfg CloudinaryConfig) (*CloudinaryStorage, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	switch {
	case cfg.URL != "":
		cld, err = cloudinary.NewFromURL(cfg.URL)
	case cfg.CloudName != "" && cfg.APIKey != "" && cfg.APISecret != "":
		cld, err = cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	default:
		return nil, errors.New("cloudinary credentials are not configured")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	root := cfg.RootFolder
	if root == "" {
		root = "clinic"
	}
	return &CloudinaryStorage{cld: cld, root: root}, nil
}

func (s *CloudinaryStorage) Upload(ctx context.Context, folder, filename string, r io.Reader) (StoredFile, error) {
	params := uploader.UploadParams{
		Folder:       path.Join(s.root, folder),
		PublicID:     uploadName(filename),
		ResourceType: "auto",
	}
	result, err := s.cld.Upload.Upload(ctx, r, params)
	if err != nil {
		return StoredFile{}, fmt.Errorf("cloudinary upload: %w", err)
	}
	if result.Error.Message != "" {
		return StoredFile{}, fmt.Errorf("cloudinary upload: %s", result.Error.Message)
	}
	if result.PublicID == "" {
		return StoredFile{}, errors.New("cloudinary upload: no public ID returned")
	}
	return StoredFile{URL: result.SecureURL, PublicID: result.PublicID}, nil
}

func (s *CloudinaryStorage) Delete(ctx context.Context, publicID string) error {
	if _, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("cloudinary delete: %w", err)
	}
	return nil
}

// uploadName keeps the readable stem of filename and makes it unique.
func uploadName(filename string) string {
	stem := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	stem = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, stem)
	if stem == "" || stem == "." || stem == "/" {
		stem = "file"
	}
	if len(stem) > 40 {
		stem = stem[:40]
	}
	return stem + "-" + uuid.NewString()[:8]
}
