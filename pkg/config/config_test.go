package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600))
	t.Setenv("GATEKEEPER_CONFIG_PATH", dir)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GATEKEEPER_CONFIG_PATH", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.BindAddress)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "/auth", cfg.SignInPath)
	assert.Equal(t, "/", cfg.SiteRoot)
	assert.Equal(t, "/admin", cfg.AdminRoot)
	assert.Equal(t, 5, cfg.RoleCacheTTLMinutes)
	assert.Equal(t, 2, cfg.ResolverRetryAttempts)
	assert.Equal(t, 200, cfg.ResolverRetryDelayMS)
	assert.Equal(t, 480, cfg.SessionTTLMinutes)
	assert.Equal(t, "default", cfg.Source("port"))
}

func TestLoad_FromFile(t *testing.T) {
	writeConfigFile(t, `
port: 9000
sign_in_path: /login
role_cache_ttl_minutes: 10
trusted_proxies:
  - 10.0.0.0/8
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/login", cfg.SignInPath)
	assert.Equal(t, 10, cfg.RoleCacheTTLMinutes)
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.TrustedProxies)

	assert.Equal(t, "file", cfg.Source("port"))
	assert.Equal(t, "file", cfg.Source("sign_in_path"))
	assert.Equal(t, "default", cfg.Source("admin_root"))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	writeConfigFile(t, "port: 9000\n")
	t.Setenv("GATEKEEPER_PORT", "7000")
	t.Setenv("GATEKEEPER_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "environment", cfg.Source("port"))
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.TrustedProxies)
}

func TestLoad_MalformedFile(t *testing.T) {
	writeConfigFile(t, "port: [not a port\n")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_DurationHelpers(t *testing.T) {
	t.Setenv("GATEKEEPER_CONFIG_PATH", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5m0s", cfg.RoleCacheTTL().String())
	assert.Equal(t, "200ms", cfg.RetryDelay().String())
	assert.Equal(t, "8h0m0s", cfg.SessionTTL().String())
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("GATEKEEPER_CONFIG_PATH", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	cfg.SignInPath = "auth"
	assert.Error(t, cfg.Validate())
	cfg.SignInPath = "/auth"

	cfg.TrustedProxies = []string{"not-a-cidr"}
	assert.Error(t, cfg.Validate())
	cfg.TrustedProxies = nil

	cfg.ResolverRetryAttempts = 0
	assert.Error(t, cfg.Validate())
}

func TestConfig_IsTrustedProxy(t *testing.T) {
	t.Setenv("GATEKEEPER_CONFIG_PATH", t.TempDir())
	t.Setenv("GATEKEEPER_TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsTrustedProxy("10.1.2.3"))
	assert.True(t, cfg.IsTrustedProxy("192.168.1.1"))
	assert.False(t, cfg.IsTrustedProxy("172.16.0.1"))
	assert.False(t, cfg.IsTrustedProxy("not-an-ip"))
}

func TestConfig_Attributes(t *testing.T) {
	t.Setenv("GATEKEEPER_CONFIG_PATH", t.TempDir())
	t.Setenv("GATEKEEPER_PORT", "7000")

	cfg, err := Load()
	require.NoError(t, err)

	var found bool
	for _, attr := range cfg.Attributes() {
		if attr.Name == "port" {
			found = true
			assert.Equal(t, "7000", attr.Value)
			assert.Equal(t, "environment", attr.Source)
		}
	}
	assert.True(t, found)
}
