package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"campusrun/internal/config"
	"campusrun/internal/domain"

	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

var ErrInvalidName = errors.New("invalid object name")

// New returns the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (domain.ObjectStorage, error) {
	switch cfg.Driver {
	case "gcs":
		opts := []option.ClientOption{option.WithScopes(gcs.DevstorageReadWriteScope)}
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		svc, err := gcs.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("unable to create storage service: %w", err)
		}
		return NewGCSStorage(svc, cfg.GCSBucket, cfg.PublicBaseURL), nil
	case "local", "":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// cleanName rejects names that would escape the storage root.
func cleanName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" || name == "." {
		return "", ErrInvalidName
	}
	return name, nil
}

func joinURL(base, name string) string {
	escaped := (&url.URL{Path: name}).EscapedPath()
	return strings.TrimRight(base, "/") + "/" + escaped
}

// LocalStorage writes objects under a directory served by the API at baseURL.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if baseURL == "" {
		baseURL = "/files"
	}
	return &LocalStorage{dir: dir, baseURL: baseURL}, nil
}

func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create object: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to store object: %w", err)
	}

	return joinURL(s.baseURL, name), nil
}

// GCSStorage uploads objects to a Google Cloud Storage bucket.
type GCSStorage struct {
	service *gcs.Service
	bucket  string
	baseURL string
}

func NewGCSStorage(svc *gcs.Service, bucket, baseURL string) *GCSStorage {
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStorage{service: svc, bucket: bucket, baseURL: baseURL}
}

func (s *GCSStorage) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}

	obj := &gcs.Object{Name: name, ContentType: contentType}
	if _, err := s.service.Objects.Insert(s.bucket, obj).Media(r).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", name, s.bucket, err)
	}
	return joinURL(s.baseURL, name), nil
}
