package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds all application configuration values for the IPTV client backend.
// Values are sourced from environment variables with validated defaults; the
// session secret is the only value with no default.
type Config struct {
	ListenAddr     string        // Address the HTTP server binds to
	BaseURL        string        // Base URL for the application (used for links and redirects)
	SessionSecret  string        // HMAC secret for signing session tokens (required)
	DatabasePath   string        // Path to the SQLite database file
	IPTVBaseURL    string        // Fallback upstream base URL when no profile is active
	IPTVUsername   string        // Fallback upstream username
	IPTVPassword   string        // Fallback upstream password
	CacheDuration  time.Duration // Duration before upstream response cache entries expire
	WorkerThreads  int           // Number of worker threads for catalog warmup
	Debug          bool          // Enable debug logging
	ObfuscateUrls  bool          // Obfuscate URLs in logs for security
	Production     bool          // Production mode (Secure cookies, quieter logs)
	EPGBase64      bool          // Decode base64-encoded EPG titles and descriptions
	UpstreamRPS    int           // Requests per second allowed against each upstream base
	StreamTimeout  time.Duration // Timeout for upstream catalog and manifest requests
	SessionMaxIdle time.Duration // Idle time before a playback session is reaped
}

var (
	configCache *Config      // Cached configuration instance (singleton)
	configMutex sync.RWMutex // Mutex for safe concurrent access to configCache
)

// LoadConfig loads the configuration from the environment or returns the
// cached instance.
//
// Process:
//   - Uses double-checked locking to avoid redundant reloads.
//   - Reads every STREAMVIEW/IPTV environment variable.
//   - Runs validation to ensure safe defaults.
//
// Returns:
//   - *Config: fully validated configuration object
//   - error: when a required value is missing
func LoadConfig() (*Config, error) {
	configMutex.RLock()
	if configCache != nil {
		defer configMutex.RUnlock()
		return configCache, nil
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	// Double-check under write lock
	if configCache != nil {
		return configCache, nil
	}

	config := loadFromEnv()
	if err := validateAndSetDefaults(config); err != nil {
		return nil, err
	}

	// Cache for future calls
	configCache = config

	// Debug logging of loaded config
	if config.Debug {
		log.Printf("Configuration loaded:")
		log.Printf("  Listen: %s", config.ListenAddr)
		log.Printf("  Database: %s", config.DatabasePath)
		log.Printf("  Fallback upstream: %s", obfuscateURL(config.IPTVBaseURL))
		log.Printf("  Cache duration: %s", config.CacheDuration)
		log.Printf("  Worker threads: %d", config.WorkerThreads)
		log.Printf("  Obfuscate URLs: %v", config.ObfuscateUrls)
	}

	return config, nil
}

// loadFromEnv reads the raw configuration from environment variables.
func loadFromEnv() *Config {
	return &Config{
		ListenAddr:     os.Getenv("LISTEN_ADDR"),
		BaseURL:        os.Getenv("BASE_URL"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		DatabasePath:   os.Getenv("DATABASE_PATH"),
		IPTVBaseURL:    os.Getenv("IPTV_BASE_URL"),
		IPTVUsername:   os.Getenv("IPTV_USERNAME"),
		IPTVPassword:   os.Getenv("IPTV_PASSWORD"),
		CacheDuration:  envDuration("CACHE_DURATION"),
		WorkerThreads:  envInt("WORKER_THREADS"),
		Debug:          envBool("DEBUG"),
		ObfuscateUrls:  envBool("OBFUSCATE_URLS"),
		Production:     os.Getenv("APP_ENV") == "production",
		EPGBase64:      envBool("EPG_BASE64_DECODE"),
		UpstreamRPS:    envInt("UPSTREAM_RPS"),
		StreamTimeout:  envDuration("STREAM_TIMEOUT"),
		SessionMaxIdle: envDuration("PLAYBACK_MAX_IDLE"),
	}
}

// validateAndSetDefaults ensures all config values are valid,
// filling in defaults for missing/invalid ones. The session secret
// has no default: a missing secret is a hard startup error.
func validateAndSetDefaults(config *Config) error {
	if config.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required and not set")
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080"
	}
	if config.DatabasePath == "" {
		config.DatabasePath = "/settings/streamview.db"
	}
	if config.CacheDuration <= 0 {
		config.CacheDuration = 30 * time.Minute
	}
	if config.WorkerThreads <= 0 {
		config.WorkerThreads = 8
	}
	if config.UpstreamRPS <= 0 {
		config.UpstreamRPS = 4
	}
	if config.StreamTimeout <= 0 {
		config.StreamTimeout = 15 * time.Second
	}
	if config.SessionMaxIdle <= 0 {
		config.SessionMaxIdle = 2 * time.Hour
	}
	return nil
}

// HasFallbackCredentials reports whether the environment provides a complete
// upstream credential set to use when a user has no active profile.
func (c *Config) HasFallbackCredentials() bool {
	return c.IPTVBaseURL != "" && c.IPTVUsername != "" && c.IPTVPassword != ""
}

// ClearConfigCache resets the configCache to nil.
// Forces a reload on the next LoadConfig() call.
func ClearConfigCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	configCache = nil
}

// envInt parses an integer environment variable, returning 0 when unset or
// unparseable so validation can apply the default.
func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default", key, v)
		return 0
	}
	return n
}

// envBool parses a boolean environment variable. Unset or unparseable
// values are false.
func envBool(key string) bool {
	v := os.Getenv(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using false", key, v)
		return false
	}
	return b
}

// envDuration parses a duration environment variable (e.g. "30m"),
// returning 0 when unset or unparseable so validation can apply the default.
func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default", key, v)
		return 0
	}
	return d
}

// obfuscateURL masks sensitive parts of a URL for logging.
//
// Example:
//
//	Input:  "http://example.com/secret/stream.m3u8?token=abc"
//	Output: "http://example.com/***?***"
func obfuscateURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return "***OBFUSCATED***"
	}
	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}
	return result
}
