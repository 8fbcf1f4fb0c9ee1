package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/gatekeeper/config"
	ConfigFileName    = "gatekeeper.yml"
)

// Config holds all gatekeeper configuration settings
type Config struct {
	// BindAddress is the address the HTTP server listens on
	BindAddress string `yaml:"bind_address" json:"bind_address"`

	// Port is the HTTP server port
	Port int `yaml:"port" json:"port"`

	// SignInPath is where unauthenticated callers are redirected
	SignInPath string `yaml:"sign_in_path" json:"sign_in_path"`

	// SiteRoot is where non-admin-class callers are redirected
	SiteRoot string `yaml:"site_root" json:"site_root"`

	// AdminRoot is where under-scoped admin-class callers are redirected
	AdminRoot string `yaml:"admin_root" json:"admin_root"`

	// RoleCachePath is the file backing the client role cache
	RoleCachePath string `yaml:"role_cache_path" json:"role_cache_path"`

	// RoleCacheTTLMinutes is the role cache freshness window in minutes
	RoleCacheTTLMinutes int `yaml:"role_cache_ttl_minutes" json:"role_cache_ttl_minutes"`

	// ResolverRetryAttempts is the total attempt budget for the role read
	ResolverRetryAttempts int `yaml:"resolver_retry_attempts" json:"resolver_retry_attempts"`

	// ResolverRetryDelayMS is the fixed delay between attempts in milliseconds
	ResolverRetryDelayMS int `yaml:"resolver_retry_delay_ms" json:"resolver_retry_delay_ms"`

	// SessionTTLMinutes is the session cookie lifetime in minutes
	SessionTTLMinutes int `yaml:"session_ttl_minutes" json:"session_ttl_minutes"`

	// ContentDir is the directory of public markdown pages
	ContentDir string `yaml:"content_dir" json:"content_dir"`

	// TrustedProxies is a list of CIDR ranges for trusted proxies
	TrustedProxies []string `yaml:"trusted_proxies" json:"trusted_proxies"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Global singleton config
var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	configMu.RLock()
	if globalConfig != nil {
		configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			globalConfig = newDefault()
		} else {
			globalConfig = cfg
		}
	}
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return nil
}

// newDefault returns a config with default values
func newDefault() *Config {
	return &Config{
		BindAddress:           "0.0.0.0",
		Port:                  8000,
		SignInPath:            "/auth",
		SiteRoot:              "/",
		AdminRoot:             "/admin",
		RoleCachePath:         defaultCachePath(),
		RoleCacheTTLMinutes:   5,
		ResolverRetryAttempts: 2,
		ResolverRetryDelayMS:  200,
		SessionTTLMinutes:     480,
		ContentDir:            "content",
		TrustedProxies:        []string{},
		sources:               make(map[string]string),
	}
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "gatekeeper", "role-cache.json")
}

// Load loads configuration from file and environment variables
// Environment variables take precedence over file values
func Load() (*Config, error) {
	config := newDefault()

	for _, name := range attributeNames() {
		config.sources[name] = "default"
	}

	configPath := os.Getenv("GATEKEEPER_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&fileConfig)
	}

	config.applyEnvConfig()

	return config, nil
}

func attributeNames() []string {
	return []string{
		"bind_address", "port", "sign_in_path", "site_root", "admin_root",
		"role_cache_path", "role_cache_ttl_minutes",
		"resolver_retry_attempts", "resolver_retry_delay_ms",
		"session_ttl_minutes", "content_dir", "trusted_proxies",
	}
}

func (c *Config) applyFileConfig(file *Config) {
	if file.BindAddress != "" {
		c.BindAddress = file.BindAddress
		c.sources["bind_address"] = "file"
	}
	if file.Port != 0 {
		c.Port = file.Port
		c.sources["port"] = "file"
	}
	if file.SignInPath != "" {
		c.SignInPath = file.SignInPath
		c.sources["sign_in_path"] = "file"
	}
	if file.SiteRoot != "" {
		c.SiteRoot = file.SiteRoot
		c.sources["site_root"] = "file"
	}
	if file.AdminRoot != "" {
		c.AdminRoot = file.AdminRoot
		c.sources["admin_root"] = "file"
	}
	if file.RoleCachePath != "" {
		c.RoleCachePath = file.RoleCachePath
		c.sources["role_cache_path"] = "file"
	}
	if file.RoleCacheTTLMinutes != 0 {
		c.RoleCacheTTLMinutes = file.RoleCacheTTLMinutes
		c.sources["role_cache_ttl_minutes"] = "file"
	}
	if file.ResolverRetryAttempts != 0 {
		c.ResolverRetryAttempts = file.ResolverRetryAttempts
		c.sources["resolver_retry_attempts"] = "file"
	}
	if file.ResolverRetryDelayMS != 0 {
		c.ResolverRetryDelayMS = file.ResolverRetryDelayMS
		c.sources["resolver_retry_delay_ms"] = "file"
	}
	if file.SessionTTLMinutes != 0 {
		c.SessionTTLMinutes = file.SessionTTLMinutes
		c.sources["session_ttl_minutes"] = "file"
	}
	if file.ContentDir != "" {
		c.ContentDir = file.ContentDir
		c.sources["content_dir"] = "file"
	}
	if len(file.TrustedProxies) > 0 {
		c.TrustedProxies = file.TrustedProxies
		c.sources["trusted_proxies"] = "file"
	}
}

func (c *Config) applyEnvConfig() {
	if val := os.Getenv("GATEKEEPER_BIND_ADDRESS"); val != "" {
		c.BindAddress = val
		c.sources["bind_address"] = "environment"
	}
	if val := os.Getenv("GATEKEEPER_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.Port = i
			c.sources["port"] = "environment"
		}
	}
	if val := os.Getenv("GATEKEEPER_SIGN_IN_PATH"); val != "" {
		c.SignInPath = val
		c.sources["sign_in_path"] = "environment"
	}
	if val := os.Getenv("GATEKEEPER_SITE_ROOT"); val != "" {
		c.SiteRoot = val
		c.sources["site_root"] = "environment"
	}
	if val := os.Getenv("GATEKEEPER_ADMIN_ROOT"); val != "" {
		c.AdminRoot = val
		c.sources["admin_root"] = "environment"
	}
	if val := os.Getenv("GATEKEEPER_ROLE_CACHE_PATH"); val != "" {
		c.RoleCachePath = val
		c.sources["role_cache_path"] = "environment"
	}
	if val := os.Getenv("GATEKEEPER_ROLE_CACHE_TTL_MINUTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.RoleCacheTTLMinutes = i
			c.sources["role_cache_ttl_minutes"] = "environment"
		}
	}
	if val := os.Getenv("GATEKEEPER_RESOLVER_RETRY_ATTEMPTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.ResolverRetryAttempts = i
			c.sources["resolver_retry_attempts"] = "environment"
		}
	}
	if val := os.Getenv("GATEKEEPER_RESOLVER_RETRY_DELAY_MS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.ResolverRetryDelayMS = i
			c.sources["resolver_retry_delay_ms"] = "environment"
		}
	}
	if val := os.Getenv("GATEKEEPER_SESSION_TTL_MINUTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.SessionTTLMinutes = i
			c.sources["session_ttl_minutes"] = "environment"
		}
	}
	if val := os.Getenv("GATEKEEPER_CONTENT_DIR"); val != "" {
		c.ContentDir = val
		c.sources["content_dir"] = "environment"
	}
	if val := os.Getenv("GATEKEEPER_TRUSTED_PROXIES"); val != "" {
		c.TrustedProxies = splitAndTrim(val)
		c.sources["trusted_proxies"] = "environment"
	}
}

// ConfigFilePath returns the path to the config file
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *Config) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// RoleCacheTTL returns the role cache freshness window as a duration
func (c *Config) RoleCacheTTL() time.Duration {
	return time.Duration(c.RoleCacheTTLMinutes) * time.Minute
}

// RetryDelay returns the resolver retry delay as a duration
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.ResolverRetryDelayMS) * time.Millisecond
}

// SessionTTL returns the session cookie lifetime as a duration
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// IsTrustedProxy checks if an IP is from a trusted proxy
func (c *Config) IsTrustedProxy(ip string) bool {
	if len(c.TrustedProxies) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, cidr := range c.TrustedProxies {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			if net.ParseIP(cidr) != nil && cidr == ip {
				return true
			}
			continue
		}
		if network.Contains(parsedIP) {
			return true
		}
	}
	return false
}

// Validate validates the configuration
func (c *Config) Validate() error {
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			if net.ParseIP(cidr) == nil {
				return fmt.Errorf("invalid trusted_proxies value: %s", cidr)
			}
		}
	}

	for _, p := range []struct{ name, value string }{
		{"sign_in_path", c.SignInPath},
		{"site_root", c.SiteRoot},
		{"admin_root", c.AdminRoot},
	} {
		if !strings.HasPrefix(p.value, "/") {
			return fmt.Errorf("%s must start with /: %s", p.name, p.value)
		}
	}

	if c.ResolverRetryAttempts < 1 {
		return fmt.Errorf("resolver_retry_attempts must be at least 1")
	}
	if c.RoleCacheTTLMinutes < 1 {
		return fmt.Errorf("role_cache_ttl_minutes must be at least 1")
	}

	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *Config) Attributes() []Attribute {
	return []Attribute{
		{Name: "bind_address", Value: c.BindAddress, Source: c.Source("bind_address")},
		{Name: "port", Value: strconv.Itoa(c.Port), Source: c.Source("port")},
		{Name: "sign_in_path", Value: c.SignInPath, Source: c.Source("sign_in_path")},
		{Name: "site_root", Value: c.SiteRoot, Source: c.Source("site_root")},
		{Name: "admin_root", Value: c.AdminRoot, Source: c.Source("admin_root")},
		{Name: "role_cache_path", Value: c.RoleCachePath, Source: c.Source("role_cache_path")},
		{Name: "role_cache_ttl_minutes", Value: strconv.Itoa(c.RoleCacheTTLMinutes), Source: c.Source("role_cache_ttl_minutes")},
		{Name: "resolver_retry_attempts", Value: strconv.Itoa(c.ResolverRetryAttempts), Source: c.Source("resolver_retry_attempts")},
		{Name: "resolver_retry_delay_ms", Value: strconv.Itoa(c.ResolverRetryDelayMS), Source: c.Source("resolver_retry_delay_ms")},
		{Name: "session_ttl_minutes", Value: strconv.Itoa(c.SessionTTLMinutes), Source: c.Source("session_ttl_minutes")},
		{Name: "content_dir", Value: c.ContentDir, Source: c.Source("content_dir")},
		{Name: "trusted_proxies", Value: strings.Join(c.TrustedProxies, ","), Source: c.Source("trusted_proxies")},
	}
}

// FormatText returns a text representation of the configuration
func (c *Config) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *Config) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
