package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Server.OperationTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2000, cfg.LLM.MaxChunkChars)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, "whisper-1", cfg.Transcription.Model)
	assert.Equal(t, "sv", cfg.Transcription.Language)
	assert.Equal(t, 10*time.Minute, cfg.Audio.SegmentDuration)
	assert.Equal(t, 4, cfg.Audio.MaxConcurrency)
	assert.Equal(t, int64(5*1024*1024), cfg.Audio.DirectThresholdBytes())
	assert.Contains(t, cfg.Audio.AllowedExtensions, "m4a")
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  driver: sqlite
  path: /tmp/dialog.db
server:
  operation_timeout: 90s
llm:
  model: gpt-4
  max_chunk_chars: 3000
audio:
  max_concurrency: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("PD_LLM_MAX_RETRIES", "5")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("POSTGRES_HOST", "db.internal")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/dialog.db", cfg.Database.Path)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.Server.OperationTimeout)
	assert.Equal(t, 3000, cfg.LLM.MaxChunkChars)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.Equal(t, 2, cfg.Audio.MaxConcurrency)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "sk-test", cfg.Transcription.APIKey)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 9000}
	assert.Equal(t, "127.0.0.1:9000", s.Addr())
}
