package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://project.supabase.co/")
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://project.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, "https://project.supabase.co/graphql/v1", cfg.Supabase.GraphQLURL)
	assert.Equal(t, "https://project.supabase.co/storage/v1/s3", cfg.Storage.S3Endpoint)
	assert.Equal(t, "https://project.supabase.co", cfg.Storage.PublicURL)
	assert.Equal(t, "post-images", cfg.Storage.PostBucket)
	assert.Equal(t, "profile-pictures", cfg.Storage.ProfileBucket)
	assert.Equal(t, int64(10*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 10*time.Second, cfg.Workflow.CallTimeout)
	assert.Equal(t, 1, cfg.Workflow.UploadConcurrency)
	assert.False(t, cfg.Workflow.FailOnPartialUpload)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SUPABASE_GRAPHQL_URL", "http://graphql.local/v1")
	t.Setenv("WORKFLOW_CALL_TIMEOUT", "3s")
	t.Setenv("WORKFLOW_UPLOAD_CONCURRENCY", "4")
	t.Setenv("WORKFLOW_FAIL_ON_PARTIAL_UPLOAD", "TRUE")
	t.Setenv("REDIS_HOST", "cache")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://graphql.local/v1", cfg.Supabase.GraphQLURL)
	assert.Equal(t, 3*time.Second, cfg.Workflow.CallTimeout)
	assert.Equal(t, 4, cfg.Workflow.UploadConcurrency)
	assert.True(t, cfg.Workflow.FailOnPartialUpload)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
}

func TestWriteTimeoutCoversLongestRun(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4*10*time.Second+10*30*time.Second, cfg.Workflow.MaxRunDuration())
	assert.Equal(t, 370, cfg.Server.WriteTimeout)

	t.Setenv("WORKFLOW_UPLOAD_CONCURRENCY", "4")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 4*10*time.Second+3*30*time.Second, cfg.Workflow.MaxRunDuration())

	t.Setenv("SERVER_WRITE_TIMEOUT", "60")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidateRejectsShortLockTTL(t *testing.T) {
	t.Setenv("WORKFLOW_LOCK_TTL", "20s")

	_, err := Load()
	assert.Error(t, err)
}

func TestAllowedOrigins(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://furnigo.app, ,http://localhost:3000 ")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://furnigo.app", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestValidateProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
	t.Setenv("SUPABASE_JWT_SECRET", "jwt-secret")
	t.Setenv("STORAGE_ACCESS_KEY_ID", "access")
	_, err = Load()
	assert.NoError(t, err)
}

func TestValidateRejectsBadConcurrency(t *testing.T) {
	t.Setenv("WORKFLOW_UPLOAD_CONCURRENCY", "0")

	_, err := Load()
	assert.Error(t, err)
}
