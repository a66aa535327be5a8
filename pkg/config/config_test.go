// Copyright 2026 ApexBridge Technologies

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir 切换工作目录，测试结束后恢复
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	// 空目录下加载，全部吃默认值
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelayDuration())
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelayDuration())
	assert.Equal(t, []int{502, 503, 504, 429}, cfg.Retry.RetryableStatusCodes)
	assert.False(t, cfg.Offline.Enabled)
	assert.Equal(t, "memory", cfg.Offline.Type)
	assert.Equal(t, 50, cfg.Offline.MaxQueueSize)
	assert.Equal(t, 10, cfg.Offline.MaxAttempts)
	assert.True(t, cfg.Deduplication.DedupEnabled())
	assert.Equal(t, 60*time.Second, cfg.Deduplication.WindowDuration())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bugspotter.yaml")
	content := []byte(`
endpoint: https://collector.example.com/reports
project_id: proj-42
api_key: secret-key
retry:
  max_retries: 5
  base_delay: 500ms
offline:
  enabled: true
  type: file
  path: /tmp/queue.json
deduplication:
  enabled: false
  window: 2m
rate_limit:
  qps: 2.5
  burst: 4
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://collector.example.com/reports", cfg.Endpoint)
	assert.Equal(t, "proj-42", cfg.ProjectID)
	assert.Equal(t, "secret-key", cfg.APIKey)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelayDuration())
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelayDuration(), "unset max_delay keeps default")
	assert.True(t, cfg.Offline.Enabled)
	assert.Equal(t, "file", cfg.Offline.Type)
	assert.False(t, cfg.Deduplication.DedupEnabled())
	assert.Equal(t, 2*time.Minute, cfg.Deduplication.WindowDuration())
	assert.Equal(t, 2.5, cfg.RateLimit.QPS)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BUGSPOTTER_ENDPOINT", "https://env.example.com/reports")
	t.Setenv("BUGSPOTTER_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/reports", cfg.Endpoint)
	assert.Equal(t, "env-key", cfg.APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestParseDuration_Fallbacks(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Second},
		{"not-a-duration", time.Second},
		{"-5s", time.Second},
		{"250ms", 250 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseDuration(tt.in, time.Second), "input %q", tt.in)
	}
}
