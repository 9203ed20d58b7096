package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
)

const (
	posterCacheControl = "public, max-age=86400"
	contentLengthRange = "x-goog-content-length-range"
	maxSignedURLTTL    = 7 * 24 * time.Hour
)

var (
	// ErrContentTypeDenied is returned for posters that are not png, jpeg or webp images.
	ErrContentTypeDenied = errors.New("storage: poster must be a png, jpeg or webp image")
	// ErrUploadNotFound is returned when a poster is published before its upload landed.
	ErrUploadNotFound = errors.New("storage: poster upload not found")
)

var posterTypesByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// PosterBucket promotes a staged upload to its public object.
type PosterBucket interface {
	Promote(ctx context.Context, stagedObject, publicObject, contentType string) error
}

// PosterUpload is a signed upload target for an event poster.
type PosterUpload struct {
	UploadID  string
	Object    string
	URL       string
	Method    string
	Headers   map[string]string
	ExpiresAt time.Time
}

// PosterStoreConfig configures the poster bucket layout.
type PosterStoreConfig struct {
	Bucket        string
	PublicBaseURL string
	UploadTTL     time.Duration
	MaxBytes      int64
}

// PosterStore issues signed poster uploads and publishes uploaded posters.
type PosterStore struct {
	signer ServiceAccount
	bucket PosterBucket
	cfg    PosterStoreConfig
	now    func() time.Time
	newID  func() string
}

// NewPosterStore validates the signer and bucket layout.
func NewPosterStore(signer ServiceAccount, bucket PosterBucket, cfg PosterStoreConfig) (*PosterStore, error) {
	if err := signer.validate(); err != nil {
		return nil, err
	}
	if bucket == nil {
		return nil, errors.New("storage: poster bucket is required")
	}
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	if cfg.Bucket == "" {
		return nil, errors.New("storage: poster bucket name is required")
	}
	if cfg.UploadTTL <= 0 {
		cfg.UploadTTL = 15 * time.Minute
	}
	if cfg.UploadTTL > maxSignedURLTTL {
		return nil, fmt.Errorf("storage: upload ttl %s exceeds %s", cfg.UploadTTL, maxSignedURLTTL)
	}
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if cfg.PublicBaseURL == "" || cfg.PublicBaseURL == "https://storage.googleapis.com" {
		cfg.PublicBaseURL = "https://storage.googleapis.com/" + cfg.Bucket
	}
	return &PosterStore{
		signer: signer,
		bucket: bucket,
		cfg:    cfg,
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}, nil
}

// IssueUpload signs a V4 PUT URL for a new poster. The client must send the returned headers.
func (s *PosterStore) IssueUpload(ctx context.Context, eventID, fileName, contentType string) (PosterUpload, error) {
	if err := ctx.Err(); err != nil {
		return PosterUpload{}, err
	}
	contentType, err := posterContentType(fileName, contentType)
	if err != nil {
		return PosterUpload{}, err
	}
	uploadID := s.newID()
	objects, err := objectsFor(eventID, uploadID, fileName)
	if err != nil {
		return PosterUpload{}, err
	}

	expiresAt := s.now().UTC().Add(s.cfg.UploadTTL)
	headers := map[string]string{"Content-Type": contentType}
	opts := &gcs.SignedURLOptions{
		GoogleAccessID: s.signer.Email,
		PrivateKey:     s.signer.PrivateKey,
		SignBytes:      s.signer.SignBytes,
		Method:         http.MethodPut,
		Expires:        expiresAt,
		ContentType:    contentType,
		Scheme:         gcs.SigningSchemeV4,
	}
	if s.cfg.MaxBytes > 0 {
		limit := "0," + strconv.FormatInt(s.cfg.MaxBytes, 10)
		headers[contentLengthRange] = limit
		opts.Headers = []string{contentLengthRange + ":" + limit}
	}
	signed, err := gcs.SignedURL(s.cfg.Bucket, objects.Upload, opts)
	if err != nil {
		return PosterUpload{}, fmt.Errorf("storage: sign poster upload: %w", err)
	}
	return PosterUpload{
		UploadID:  uploadID,
		Object:    objects.Upload,
		URL:       signed,
		Method:    http.MethodPut,
		Headers:   headers,
		ExpiresAt: expiresAt,
	}, nil
}

// Publish promotes a finished upload to its public object and returns the public URL.
func (s *PosterStore) Publish(ctx context.Context, eventID, uploadID, fileName string) (string, error) {
	contentType, err := posterContentType(fileName, "")
	if err != nil {
		return "", err
	}
	objects, err := objectsFor(eventID, uploadID, fileName)
	if err != nil {
		return "", err
	}
	if err := s.bucket.Promote(ctx, objects.Upload, objects.Public, contentType); err != nil {
		return "", err
	}
	return s.cfg.PublicBaseURL + "/" + objects.Public, nil
}

// posterContentType resolves the image type from the file extension and
// rejects a declared type that disagrees with it.
func posterContentType(fileName, declared string) (string, error) {
	byExt, ok := posterTypesByExt[strings.ToLower(path.Ext(strings.TrimSpace(fileName)))]
	if !ok {
		return "", ErrContentTypeDenied
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != byExt {
		return "", ErrContentTypeDenied
	}
	return byExt, nil
}

// GCSBucket promotes posters inside a Cloud Storage bucket.
type GCSBucket struct {
	handle *gcs.BucketHandle
}

// NewGCSBucket binds the poster bucket on the given client.
func NewGCSBucket(client *gcs.Client, name string) (*GCSBucket, error) {
	if client == nil {
		return nil, errors.New("storage: cloud storage client is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("storage: poster bucket name is required")
	}
	return &GCSBucket{handle: client.Bucket(name)}, nil
}

// Promote copies the staged object with public cache metadata, then drops the staged copy.
func (b *GCSBucket) Promote(ctx context.Context, stagedObject, publicObject, contentType string) error {
	staged := b.handle.Object(stagedObject)
	copier := b.handle.Object(publicObject).CopierFrom(staged)
	copier.ContentType = contentType
	copier.CacheControl = posterCacheControl
	if _, err := copier.Run(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return ErrUploadNotFound
		}
		return fmt.Errorf("storage: promote poster: %w", err)
	}
	// Leftover staged objects expire through the bucket lifecycle rule.
	_ = staged.Delete(ctx)
	return nil
}
