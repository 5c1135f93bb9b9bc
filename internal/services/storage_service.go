// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/sirupsen/logrus"

	"github.com/furnigo/furnigo-api/internal/apperrors"
	"github.com/furnigo/furnigo-api/internal/config"
	"github.com/furnigo/furnigo-api/internal/metrics"
)

// ObjectStorage is the object storage collaborator.
type ObjectStorage interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, opts UploadOptions) (*UploadResult, error)
	PublicURL(bucket, key string) string
}

type StorageService struct {
	s3Client s3iface.S3API
	config   *config.StorageConfig
}

type UploadResult struct {
	URL      string `json:"url"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type UploadOptions struct {
	ContentType  string
	CacheControl string
	Upsert       bool
}

// NewStorageService connects to the S3-compatible endpoint. Without
// credentials objects are written below StorageConfig.LocalDir instead.
func NewStorageService(cfg *config.StorageConfig) (*StorageService, error) {
	if cfg.AccessKeyID == "" {
		logrus.WithField("dir", cfg.LocalDir).Warn("Storage credentials missing, using local object storage")
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(cfg.Region),
		Endpoint:         aws.String(cfg.S3Endpoint),
		S3ForcePathStyle: aws.Bool(true),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage session: %w", err)
	}

	return NewStorageServiceWithClient(s3.New(sess), cfg), nil
}

func NewStorageServiceWithClient(client s3iface.S3API, cfg *config.StorageConfig) *StorageService {
	return &StorageService{
		s3Client: client,
		config:   cfg,
	}
}

// IsLocal reports whether objects are kept on the local filesystem.
func (s *StorageService) IsLocal() bool {
	return s.s3Client == nil
}

func (s *StorageService) Upload(ctx context.Context, bucket, key string, body io.Reader, opts UploadOptions) (*UploadResult, error) {
	result, err := s.upload(ctx, bucket, key, body, opts)
	metrics.RecordImageUpload(bucket, err)
	return result, err
}

func (s *StorageService) upload(ctx context.Context, bucket, key string, body io.Reader, opts UploadOptions) (*UploadResult, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	// Read file content, one byte past the limit to detect oversize bodies
	limit := s.config.MaxUploadBytes
	reader := body
	if limit > 0 {
		reader = io.LimitReader(body, limit+1)
	}
	fileBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if limit > 0 && int64(len(fileBytes)) > limit {
		return nil, apperrors.InvalidInput("file exceeds maximum allowed size of %d bytes", limit)
	}
	if !isValidImageType(fileBytes) {
		return nil, apperrors.InvalidInput("%s is not a supported image", key)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	cacheControl := opts.CacheControl
	if cacheControl == "" {
		cacheControl = s.config.CacheControl
	}

	if s.s3Client != nil {
		err = s.uploadToS3(ctx, bucket, key, fileBytes, contentType, cacheControl, opts.Upsert)
	} else {
		err = s.uploadToLocal(bucket, key, fileBytes, opts.Upsert)
	}
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		URL:      s.PublicURL(bucket, key),
		Bucket:   bucket,
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) uploadToS3(ctx context.Context, bucket, key string, fileBytes []byte, contentType, cacheControl string, upsert bool) error {
	if !upsert {
		_, err := s.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return apperrors.InvalidInput("object %s/%s already exists", bucket, key)
		}
		if !isNotFound(err) {
			return apperrors.FromContext("head object", err)
		}
	}

	params := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(fileBytes))),
		CacheControl:  aws.String(cacheControl),
	}

	if _, err := s.s3Client.PutObjectWithContext(ctx, params); err != nil {
		return apperrors.FromContext("put object", err)
	}

	return nil
}

func (s *StorageService) uploadToLocal(bucket, key string, fileBytes []byte, upsert bool) error {
	path := filepath.Join(s.config.LocalDir, bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create directory: %v", apperrors.ErrTransport, err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !upsert {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return apperrors.InvalidInput("object %s/%s already exists", bucket, key)
		}
		return fmt.Errorf("%w: open %s: %v", apperrors.ErrTransport, path, err)
	}
	defer f.Close()

	if _, err := f.Write(fileBytes); err != nil {
		return fmt.Errorf("%w: write %s: %v", apperrors.ErrTransport, path, err)
	}
	return nil
}

// PublicURL builds the public reference of an object; the storage endpoint
// itself never returns one.
func (s *StorageService) PublicURL(bucket, key string) string {
	escaped := make([]string, 0)
	for _, part := range strings.Split(key, "/") {
		escaped = append(escaped, url.PathEscape(part))
	}

	if s.s3Client == nil {
		return fmt.Sprintf("%s/uploads/%s/%s", s.config.PublicURL, bucket, strings.Join(escaped, "/"))
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.config.PublicURL, bucket, strings.Join(escaped, "/"))
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return apperrors.InvalidInput("invalid object key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return apperrors.InvalidInput("invalid object key %q", key)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.RequestFailure); ok {
		return aerr.StatusCode() == 404
	}
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey
	}
	return false
}

func isValidImageType(buffer []byte) bool {
	// Check for JPEG
	if len(buffer) >= 3 && buffer[0] == 0xFF && buffer[1] == 0xD8 && buffer[2] == 0xFF {
		return true
	}

	// Check for PNG
	if len(buffer) >= 8 && buffer[0] == 0x89 && buffer[1] == 0x50 && buffer[2] == 0x4E && buffer[3] == 0x47 {
		return true
	}

	// Check for GIF
	if len(buffer) >= 6 && (string(buffer[0:6]) == "GIF87a" || string(buffer[0:6]) == "GIF89a") {
		return true
	}

	// Check for WEBP
	if len(buffer) >= 12 && string(buffer[0:4]) == "RIFF" && string(buffer[8:12]) == "WEBP" {
		return true
	}

	// Check for HEIC/HEIF (ftyp box)
	if len(buffer) >= 12 && string(buffer[4:8]) == "ftyp" {
		brand := string(buffer[8:12])
		return brand == "heic" || brand == "heix" || brand == "mif1"
	}

	return false
}
