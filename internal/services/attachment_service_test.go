package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postKey = regexp.MustCompile(`^posts/42/7/\d+_[0-9a-f]{8}_image\.(jpg|png)$`)

func TestUploadPostImages(t *testing.T) {
	cfg := testStorageConfig(t)
	svc := NewAttachmentService(newLocalStorage(t, cfg), cfg, testWorkflowConfig())

	outcomes := svc.UploadPostImages(context.Background(), 42, 7, []ImageSource{
		ImageSourceFromBytes("front.jpg", "image/jpeg", jpegBytes),
		ImageSourceFromBytes("side.png", "image/png", pngBytes),
	})
	require.Len(t, outcomes, 2)

	for i, o := range outcomes {
		assert.True(t, o.Succeeded())
		assert.Equal(t, i, o.Index)
		assert.Regexp(t, postKey, o.Key)
		assert.Equal(t, "http://localhost:8080/uploads/post-images/"+o.Key, o.URL)
	}
	assert.Equal(t, ".png", outcomes[1].Key[len(outcomes[1].Key)-4:])
	assert.NotEqual(t, outcomes[0].Key, outcomes[1].Key)
	assert.Len(t, SucceededURLs(outcomes), 2)
}

func TestUploadPostImagesSkipsFailures(t *testing.T) {
	cfg := testStorageConfig(t)
	svc := NewAttachmentService(newLocalStorage(t, cfg), cfg, testWorkflowConfig())

	outcomes := svc.UploadPostImages(context.Background(), 42, 7, []ImageSource{
		ImageSourceFromBytes("a.jpg", "image/jpeg", jpegBytes),
		ImageSourceFromBytes("notes.txt", "text/plain", []byte("not an image")),
		{Name: "gone.jpg", Open: func() (io.ReadCloser, error) { return nil, errors.New("file removed") }},
		ImageSourceFromBytes("d.png", "image/png", pngBytes),
	})
	require.Len(t, outcomes, 4)

	assert.True(t, outcomes[0].Succeeded())
	assert.False(t, outcomes[1].Succeeded())
	assert.NotEmpty(t, outcomes[1].Reason)
	assert.Empty(t, outcomes[1].URL)
	assert.False(t, outcomes[2].Succeeded())
	assert.True(t, outcomes[3].Succeeded())

	urls := SucceededURLs(outcomes)
	assert.Equal(t, []string{outcomes[0].URL, outcomes[3].URL}, urls)
	assert.Equal(t, []string{outcomes[0].Key, outcomes[3].Key}, SucceededKeys(outcomes))
	assert.Equal(t, 2, FailedCount(outcomes))
}

func TestUploadPostImagesAllFail(t *testing.T) {
	cfg := testStorageConfig(t)
	svc := NewAttachmentService(newLocalStorage(t, cfg), cfg, testWorkflowConfig())

	outcomes := svc.UploadPostImages(context.Background(), 42, 7, []ImageSource{
		ImageSourceFromBytes("a.txt", "", []byte("x")),
		ImageSourceFromBytes("b.txt", "", []byte("y")),
	})
	assert.Empty(t, SucceededURLs(outcomes))
	assert.NotNil(t, SucceededURLs(outcomes))
}

func TestUploadPostImagesConcurrentKeepsOrder(t *testing.T) {
	cfg := testStorageConfig(t)
	wf := testWorkflowConfig()
	wf.UploadConcurrency = 4
	svc := NewAttachmentService(newLocalStorage(t, cfg), cfg, wf)

	sources := make([]ImageSource, 0, 9)
	for i := 0; i < 9; i++ {
		data := jpegBytes
		if i%3 == 1 {
			data = []byte("broken")
		}
		sources = append(sources, ImageSourceFromBytes(fmt.Sprintf("img-%d", i), "image/jpeg", data))
	}

	outcomes := svc.UploadPostImages(context.Background(), 42, 7, sources)
	require.Len(t, outcomes, 9)
	for i, o := range outcomes {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, fmt.Sprintf("img-%d", i), o.Source)
		assert.Equal(t, i%3 != 1, o.Succeeded())
	}
	assert.Len(t, SucceededURLs(outcomes), 6)
}

func TestUploadPostImagesDistinctKeysInSameMillisecond(t *testing.T) {
	cfg := testStorageConfig(t)
	svc := NewAttachmentService(newLocalStorage(t, cfg), cfg, testWorkflowConfig())
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	outcomes := svc.UploadPostImages(context.Background(), 42, 7, []ImageSource{
		ImageSourceFromBytes("a.jpg", "image/jpeg", jpegBytes),
		ImageSourceFromBytes("b.jpg", "image/jpeg", jpegBytes),
	})
	require.True(t, outcomes[0].Succeeded())
	require.True(t, outcomes[1].Succeeded())
	assert.NotEqual(t, outcomes[0].Key, outcomes[1].Key)
}

func TestContentTypeOrDefault(t *testing.T) {
	assert.Equal(t, "image/jpeg", contentTypeOrDefault(""))
	assert.Equal(t, "image/jpeg", contentTypeOrDefault("application/octet-stream"))
	assert.Equal(t, "image/png", contentTypeOrDefault("image/PNG; charset=binary"))
	assert.Equal(t, ".webp", extensionFor("image/webp"))
	assert.Equal(t, ".jpg", extensionFor(""))
}
