package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furnigo/furnigo-api/internal/apperrors"
)

type fakeS3 struct {
	s3iface.S3API

	mu      sync.Mutex
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = body
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Bucket+"/"+*in.Key]; !ok {
		return nil, awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), 404, "req-1")
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestLocalUpload(t *testing.T) {
	cfg := testStorageConfig(t)
	svc := newLocalStorage(t, cfg)
	require.True(t, svc.IsLocal())

	result, err := svc.Upload(context.Background(), "post-images", "posts/42/7/1_abc_image.png", bytes.NewReader(pngBytes), UploadOptions{
		ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/post-images/posts/42/7/1_abc_image.png", result.URL)
	assert.Equal(t, int64(len(pngBytes)), result.Size)

	data, err := os.ReadFile(filepath.Join(cfg.LocalDir, "post-images", "posts", "42", "7", "1_abc_image.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestLocalUploadWithoutUpsertRefusesOverwrite(t *testing.T) {
	svc := newLocalStorage(t, testStorageConfig(t))
	ctx := context.Background()

	_, err := svc.Upload(ctx, "b", "k.jpg", bytes.NewReader(jpegBytes), UploadOptions{})
	require.NoError(t, err)

	_, err = svc.Upload(ctx, "b", "k.jpg", bytes.NewReader(jpegBytes), UploadOptions{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Upload(ctx, "b", "k.jpg", bytes.NewReader(pngBytes), UploadOptions{Upsert: true})
	assert.NoError(t, err)
}

func TestUploadRejectsBadInput(t *testing.T) {
	cfg := testStorageConfig(t)
	cfg.MaxUploadBytes = 32
	svc := newLocalStorage(t, cfg)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "b", "a.txt", bytes.NewReader([]byte("plain text")), UploadOptions{Upsert: true})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	big := append(append([]byte{}, jpegBytes...), make([]byte, 64)...)
	_, err = svc.Upload(ctx, "b", "big.jpg", bytes.NewReader(big), UploadOptions{Upsert: true})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	for _, key := range []string{"", "/abs.jpg", "a/../b.jpg", "a//b.jpg"} {
		_, err = svc.Upload(ctx, "b", key, bytes.NewReader(jpegBytes), UploadOptions{Upsert: true})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, key)
	}
}

func TestS3Upload(t *testing.T) {
	cfg := testStorageConfig(t)
	cfg.PublicURL = "https://project.supabase.co"
	client := newFakeS3()
	svc := NewStorageServiceWithClient(client, cfg)
	require.False(t, svc.IsLocal())

	result, err := svc.Upload(context.Background(), "post-images", "posts/42/7/my image.jpg", bytes.NewReader(jpegBytes), UploadOptions{Upsert: true})
	require.NoError(t, err)

	assert.Equal(t, "https://project.supabase.co/storage/v1/object/public/post-images/posts/42/7/my%20image.jpg", result.URL)
	require.Len(t, client.puts, 1)
	assert.Equal(t, "image/jpeg", aws.StringValue(client.puts[0].ContentType))
	assert.Equal(t, "max-age=3600", aws.StringValue(client.puts[0].CacheControl))
	assert.Equal(t, jpegBytes, client.objects["post-images/posts/42/7/my image.jpg"])
}

func TestS3UploadWithoutUpsert(t *testing.T) {
	client := newFakeS3()
	svc := NewStorageServiceWithClient(client, testStorageConfig(t))
	ctx := context.Background()

	_, err := svc.Upload(ctx, "b", "k.jpg", bytes.NewReader(jpegBytes), UploadOptions{})
	require.NoError(t, err)

	_, err = svc.Upload(ctx, "b", "k.jpg", bytes.NewReader(jpegBytes), UploadOptions{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Upload(ctx, "b", "k.jpg", bytes.NewReader(pngBytes), UploadOptions{Upsert: true})
	require.NoError(t, err)
	assert.Equal(t, pngBytes, client.objects["b/k.jpg"])
}

func TestS3UploadFailures(t *testing.T) {
	client := newFakeS3()
	svc := NewStorageServiceWithClient(client, testStorageConfig(t))

	client.putErr = awserr.New("InternalError", "storage unavailable", nil)
	_, err := svc.Upload(context.Background(), "b", "k.jpg", bytes.NewReader(jpegBytes), UploadOptions{Upsert: true})
	assert.ErrorIs(t, err, apperrors.ErrTransport)

	client.putErr = nil
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, err = svc.Upload(ctx, "b", "k.jpg", bytes.NewReader(jpegBytes), UploadOptions{Upsert: true})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.False(t, errors.Is(err, apperrors.ErrTransport))
}
