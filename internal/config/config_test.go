package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
service_params:
  env: test
  tab_ttl_mins: 60
api_params:
  base_url: http://api.example.com/api
  request_timeout_secs: 15
  refresh_timeout_secs: 5
  dedupe_refresh: false
store_params:
  driver: redis
redis_params:
  url: redis://cache:6379
  password: secret
server_params:
  shell_address: 127.0.0.1:9000
  health_address: :9001
  grpc_address: :9002
routes_params:
  login_path: /login
  user_default_path: /dashboard
  admin_default_path: /admin/dashboard
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadFromFile(t *testing.T) {
	dir := writeConfig(t, testConfigYAML)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Service.Env)
	assert.Equal(t, time.Hour, cfg.Service.GetTabTTL())
	assert.Equal(t, "http://api.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.GetRequestTimeout())
	assert.Equal(t, 5*time.Second, cfg.API.GetRefreshTimeout())
	assert.False(t, cfg.API.DedupeRefresh)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "redis://:secret@cache:6379", cfg.Redis.RedisURL())
	assert.Equal(t, "/admin/dashboard", cfg.Routes.AdminDefaultPath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, testConfigYAML)
	t.Setenv("API_BASE_URL", "https://override.example.com/api")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("API_DEDUPE_REFRESH", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.True(t, cfg.API.DedupeRefresh)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:5000/api")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Service.Env)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "/login", cfg.Routes.LoginPath)
	assert.True(t, cfg.API.DedupeRefresh)
	assert.Equal(t, 10*time.Second, cfg.API.GetRefreshTimeout())
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing base url", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("unknown store driver", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "http://localhost:5000/api")
		t.Setenv("STORE_DRIVER", "cookies")
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("redis driver requires url", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "http://localhost:5000/api")
		t.Setenv("STORE_DRIVER", "redis")
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("route must be absolute", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "http://localhost:5000/api")
		t.Setenv("ROUTE_LOGIN_PATH", "login")
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})
}

func TestRedisURL(t *testing.T) {
	cases := []struct {
		params RedisParams
		want   string
	}{
		{RedisParams{URL: "localhost:6379"}, "redis://localhost:6379"},
		{RedisParams{URL: "redis://localhost:6379"}, "redis://localhost:6379"},
		{RedisParams{URL: "localhost:6379", Password: "pw"}, "redis://:pw@localhost:6379"},
		{RedisParams{URL: "redis://localhost:6379", Password: "pw"}, "redis://:pw@localhost:6379"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.params.RedisURL())
	}
}
