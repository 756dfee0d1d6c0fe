package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"vecdb/internal/config"
)

func TestLoadConfig(t *testing.T) {
	// Set env var directly to test envconfig logic
	os.Setenv("DB_HOST", "test-host")
	defer os.Unsetenv("DB_HOST")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	// Create a temp .env file
	content := []byte("DB_HOST=loaded-from-file")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
}

func TestLoadConfig_Toggles(t *testing.T) {
	os.Setenv("ENABLE_API", "false")
	os.Setenv("ENABLE_PARSE_WORKER", "true")
	os.Setenv("ENABLE_VECTORIZE_WORKER", "true")
	os.Setenv("PIPELINE_CONCURRENCY", "10")
	defer os.Unsetenv("ENABLE_API")
	defer os.Unsetenv("ENABLE_PARSE_WORKER")
	defer os.Unsetenv("ENABLE_VECTORIZE_WORKER")
	defer os.Unsetenv("PIPELINE_CONCURRENCY")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.False(t, cfg.EnableAPI)
	assert.True(t, cfg.EnableParseWorker)
	assert.True(t, cfg.EnableVectorizeWorker)
	assert.Equal(t, 10, cfg.PipelineConcurrency)
}

func TestLoadConfig_EmbedLimits(t *testing.T) {
	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 120, cfg.EmbedRequestsPerMinute)
	assert.Equal(t, 5, cfg.EmbedMaxRetries)
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, config.TopicLibraryEvents, config.TopicFor("library.created"))
	assert.Equal(t, config.TopicLibraryConfigEvents, config.TopicFor("library.config.added"))
	assert.Equal(t, config.TopicDocumentEvents, config.TopicFor("document.fragment_received"))
	assert.Equal(t, config.TopicContentEvents, config.TopicFor("content.extracted"))
	assert.Equal(t, config.TopicVectorizationEvents, config.TopicFor("vectorization.pending"))
	assert.Equal(t, config.TopicVectorizationEvents, config.TopicFor("vectorization.embedding_created"))
}
