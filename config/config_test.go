package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 7*time.Minute, cfg.Escalation.Delay)
	assert.Equal(t, 10*time.Second, cfg.Downstream.Timeout)
	assert.Equal(t, 1000, cfg.Journal.Capacity)
	assert.Equal(t, 24*time.Hour, cfg.Journal.Retention)
	assert.Equal(t, "@every 1m", cfg.Journal.SweepSchedule)
	assert.False(t, cfg.Downstream.Breaker.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
downstream:
  url: "https://n8n.example.com/webhook/abc"
  timeout: 5s
escalation:
  delay: 90s
log:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "https://n8n.example.com/webhook/abc", cfg.Downstream.URL)
	assert.Equal(t, 5*time.Second, cfg.Downstream.Timeout)
	assert.Equal(t, 90*time.Second, cfg.Escalation.Delay)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1000, cfg.Journal.Capacity)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assertCode(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"empty addr":      func(c *Config) { c.Server.Addr = "" },
		"zero delay":      func(c *Config) { c.Escalation.Delay = 0 },
		"zero timeout":    func(c *Config) { c.Downstream.Timeout = 0 },
		"bad url scheme":  func(c *Config) { c.Downstream.URL = "ftp://example.com" },
		"url without host": func(c *Config) { c.Downstream.URL = "http://" },
		"breaker failures": func(c *Config) {
			c.Downstream.Breaker.Enabled = true
			c.Downstream.Breaker.MaxFailures = 0
		},
		"journal capacity": func(c *Config) { c.Journal.Capacity = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assertCode(t, err)
		})
	}
}

func TestTargetSetAndGet(t *testing.T) {
	target := NewTarget("")
	assert.Equal(t, "", target.URL())

	require.NoError(t, target.Set(" https://n8n.example.com/hook "))
	assert.Equal(t, "https://n8n.example.com/hook", target.URL())

	err := target.Set("not a url")
	require.Error(t, err)
	assertCode(t, err)
	assert.Equal(t, "https://n8n.example.com/hook", target.URL())

	require.Error(t, target.Set(""))
}

func TestTargetConcurrentAccess(t *testing.T) {
	target := NewTarget("http://a.example.com")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = target.Set("http://b.example.com")
		}()
		go func() {
			defer wg.Done()
			url := target.URL()
			if url != "http://a.example.com" && url != "http://b.example.com" {
				t.Errorf("torn read: %q", url)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, "http://b.example.com", target.URL())
}

func assertCode(t *testing.T, err error) {
	t.Helper()
	var ge *errors.Error
	require.True(t, stderrors.As(err, &ge), "expected go-errors payload, got %T", err)
	assert.Equal(t, CodeInvalidConfig, ge.TextCode)
}
