// internal/services/attachment_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/furnigo/furnigo-api/internal/config"
)

// ImageSource is one local image picked for upload.
type ImageSource struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

func ImageSourceFromFileHeader(fh *multipart.FileHeader) ImageSource {
	return ImageSource{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func ImageSourceFromBytes(name, contentType string, data []byte) ImageSource {
	return ImageSource{
		Name:        name,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// UploadOutcome is the tagged result of one upload attempt: either URL and Key
// are set, or Err is.
type UploadOutcome struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	Key    string `json:"key,omitempty"`
	URL    string `json:"url,omitempty"`
	Err    error  `json:"-"`
	Reason string `json:"reason,omitempty"`
}

func (o UploadOutcome) Succeeded() bool {
	return o.Err == nil
}

// SucceededURLs keeps the references of successful uploads in input order.
func SucceededURLs(outcomes []UploadOutcome) []string {
	urls := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Succeeded() {
			urls = append(urls, o.URL)
		}
	}
	return urls
}

// SucceededKeys keeps the object keys of successful uploads in input order.
func SucceededKeys(outcomes []UploadOutcome) []string {
	keys := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Succeeded() {
			keys = append(keys, o.Key)
		}
	}
	return keys
}

func FailedCount(outcomes []UploadOutcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.Succeeded() {
			n++
		}
	}
	return n
}

type AttachmentService struct {
	storage ObjectStorage
	bucket  string
	cfg     *config.WorkflowConfig
	now     func() time.Time
}

func NewAttachmentService(storage ObjectStorage, storageCfg *config.StorageConfig, workflowCfg *config.WorkflowConfig) *AttachmentService {
	return &AttachmentService{
		storage: storage,
		bucket:  storageCfg.PostBucket,
		cfg:     workflowCfg,
		now:     time.Now,
	}
}

// UploadPostImages uploads every source under posts/<userID>/<postID>/. A
// failing item is logged and reported in its outcome; it never stops the
// others. Outcomes are returned in input order.
func (s *AttachmentService) UploadPostImages(ctx context.Context, userID, postID int64, sources []ImageSource) []UploadOutcome {
	outcomes := make([]UploadOutcome, len(sources))

	g := new(errgroup.Group)
	g.SetLimit(max(s.cfg.UploadConcurrency, 1))

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			outcomes[i] = s.uploadOne(ctx, userID, postID, i, src)
			return nil
		})
	}
	g.Wait()

	return outcomes
}

func (s *AttachmentService) uploadOne(ctx context.Context, userID, postID int64, index int, src ImageSource) UploadOutcome {
	outcome := UploadOutcome{Index: index, Source: src.Name}
	outcome.Key = s.objectKey(userID, postID, src.ContentType)

	url, err := s.put(ctx, outcome.Key, src)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"post_id": postID,
			"index":   index,
			"source":  src.Name,
		}).WithError(err).Error("Image upload failed")

		outcome.Key = ""
		outcome.Err = err
		outcome.Reason = err.Error()
		return outcome
	}

	outcome.URL = url
	logrus.WithFields(logrus.Fields{
		"post_id": postID,
		"index":   index,
		"url":     url,
	}).Info("Image uploaded")
	return outcome
}

func (s *AttachmentService) put(ctx context.Context, key string, src ImageSource) (string, error) {
	if src.Open == nil {
		return "", errors.New("image source has no content")
	}

	body, err := src.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src.Name, err)
	}
	defer body.Close()

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	result, err := s.storage.Upload(callCtx, s.bucket, key, body, UploadOptions{
		ContentType: contentTypeOrDefault(src.ContentType),
		Upsert:      true,
	})
	if err != nil {
		return "", err
	}
	return result.URL, nil
}

// objectKey is posts/<user>/<post>/<unix millis>_<random>_image.<ext>. The
// random part keeps keys distinct when uploads share a millisecond.
func (s *AttachmentService) objectKey(userID, postID int64, contentType string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("posts/%d/%d/%d_%s_image%s",
		userID, postID, s.now().UnixMilli(), suffix, extensionFor(contentType))
}

func contentTypeOrDefault(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

func extensionFor(contentType string) string {
	switch contentTypeOrDefault(contentType) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic", "image/heif":
		return ".heic"
	default:
		return ".jpg"
	}
}
