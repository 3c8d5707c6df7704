package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8090, cfg.ServerPort)
	assert.Equal(t, int64(1024*1024), cfg.MaxFileSize)
	assert.Equal(t, "text-embedding-004", cfg.Knowledge.EmbeddingModel)
	assert.True(t, cfg.Tools.Enabled)
	assert.Equal(t, time.Minute, cfg.Tools.DefaultTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Tools.AnalysisTimeout)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "solguardian-events", cfg.Events.Topic)
	assert.True(t, cfg.Audit.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("MAX_FILE_SIZE_BYTES", "2048")
	t.Setenv("EXTERNAL_TOOLS_ENABLED", "false")
	t.Setenv("TOOL_TIMEOUT_SECONDS", "10")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KNOWLEDGE_SEED_DIRS", "/corpus/exploits,/corpus/audits")

	cfg := Load()

	assert.Equal(t, 9999, cfg.ServerPort)
	assert.Equal(t, int64(2048), cfg.MaxFileSize)
	assert.False(t, cfg.Tools.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Tools.DefaultTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, []string{"/corpus/exploits", "/corpus/audits"}, cfg.Knowledge.SeedDirs)
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("AUDIT_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 8090, cfg.ServerPort)
	assert.True(t, cfg.Audit.Enabled)
}

func TestValidate(t *testing.T) {
	base := Load()

	cfg := *base
	cfg.ServerPort = 0
	assert.Error(t, cfg.Validate())

	cfg = *base
	cfg.ServerPort = 70000
	assert.Error(t, cfg.Validate())

	cfg = *base
	cfg.MaxFileSize = 0
	assert.Error(t, cfg.Validate())

	cfg = *base
	cfg.Tools.DefaultTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = *base
	cfg.Events.Enabled = true
	cfg.Events.Brokers = nil
	assert.Error(t, cfg.Validate())

	cfg = *base
	cfg.Events.Enabled = true
	cfg.Events.Brokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.Validate())
}
