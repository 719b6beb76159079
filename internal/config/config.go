// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Data    DataConfig
	Library LibraryConfig
	Server  ServerConfig
	Reader  ReaderConfig
	Share   ShareConfig
	Watcher WatcherConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds application data storage configuration.
type DataConfig struct {
	// BasePath is the root directory for the database, search index,
	// extracted covers and thumbnails (default: ~/Shiori/data).
	BasePath string
}

// LibraryConfig holds book library configuration.
type LibraryConfig struct {
	// BookPath is the directory scanned for EPUB/CBZ/PDF files.
	// May be empty; the library can be configured via the API later.
	BookPath string
	// WatchLibrary enables the filesystem watcher on BookPath (default: true).
	WatchLibrary bool
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name          string
	LocalURL      string        // Optional
	Port          string        // Server port (default: 8080)
	ReadTimeout   time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout  time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout   time.Duration // HTTP idle timeout (default: 60s)
	AdvertiseMDNS bool          // Advertise via mDNS/Zeroconf (default: true)
}

// ReaderConfig holds tuning knobs for the reading pipeline.
type ReaderConfig struct {
	// OpenTimeout bounds opening a book file (default: 10s).
	OpenTimeout time.Duration
	// ChapterTimeout bounds loading and assembling a single chapter (default: 5s).
	ChapterTimeout time.Duration
	// FlipDuration is the page flip animation length (default: 400ms).
	FlipDuration time.Duration
	// ProgressRate caps scroll progress updates per second (default: 8).
	ProgressRate int
	// PersistDebounce is the quiet window before progress is written (default: 2s).
	PersistDebounce time.Duration
	// RestoreSettle is the wait after render before scroll restore (default: 150ms).
	RestoreSettle time.Duration
	// PreloadRadius is how many chapters around the current one are preloaded (default: 2).
	PreloadRadius int
	// CacheSizeMB bounds the rendered chapter cache (default: 64).
	CacheSizeMB int
}

// ShareConfig holds share link configuration.
type ShareConfig struct {
	// TokenKey is the PASETO v4 symmetric key for share tokens (32 bytes).
	// Set by auth.LoadOrGenerateKey in main.
	TokenKey []byte
	// DefaultDuration is the share expiry when none is requested (default: 168h).
	DefaultDuration time.Duration
	// SessionDuration is the share session token lifetime (default: 24h).
	SessionDuration time.Duration
}

// WatcherConfig holds filesystem watcher configuration.
type WatcherConfig struct {
	// SettleDelay is the debounce window for bursts of file events (default: 2s).
	SettleDelay time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for application data")
	bookPath := flag.String("book-path", "", "Path to book library")
	watchLibrary := flag.String("watch-library", "", "Watch the library path for changes (default: true)")
	serverName := flag.String("server-name", "", "Name for the server")
	serverLocalURL := flag.String("local-url", "", "Internal server url")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	advertiseMDNS := flag.String("advertise-mdns", "", "Advertise via mDNS/Zeroconf (default: true)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// Reader flags
	openTimeout := flag.String("open-timeout", "", "Book open timeout (default: 10s)")
	chapterTimeout := flag.String("chapter-timeout", "", "Chapter load timeout (default: 5s)")
	flipDuration := flag.String("flip-duration", "", "Page flip animation duration (default: 400ms)")
	progressRate := flag.String("progress-rate", "", "Max scroll progress updates per second (default: 8)")
	persistDebounce := flag.String("persist-debounce", "", "Quiet window before progress persistence (default: 2s)")
	restoreSettle := flag.String("restore-settle", "", "Delay before scroll restore after render (default: 150ms)")
	preloadRadius := flag.String("preload-radius", "", "Chapters preloaded around the current one (default: 2)")
	cacheSize := flag.String("cache-size", "", "Rendered chapter cache size in MB (default: 64)")

	// Share flags
	shareDuration := flag.String("share-duration", "", "Default share link lifetime (e.g., 168h)")
	shareSession := flag.String("share-session", "", "Share session token lifetime (default: 24h)")

	// Watcher flags
	watcherSettle := flag.String("watcher-settle", "", "Debounce window for file events (default: 2s)")

	// Parse flags but don't exit on error - we want to handle it gracefully.
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},

		Library: LibraryConfig{
			BookPath:     getConfigValue(*bookPath, "BOOK_PATH", ""),
			WatchLibrary: getBoolConfigValue(*watchLibrary, "WATCH_LIBRARY", true),
		},

		Server: ServerConfig{
			Name:          getConfigValue(*serverName, "SERVER_NAME", "Shiori Server"),
			LocalURL:      getConfigValue(*serverLocalURL, "SERVER_LOCAL_URL", ""),
			Port:          getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AdvertiseMDNS: getBoolConfigValue(*advertiseMDNS, "ADVERTISE_MDNS", true),
		},

		Reader: ReaderConfig{
			ProgressRate:  getIntConfigValue(*progressRate, "READER_PROGRESS_RATE", 8),
			PreloadRadius: getIntConfigValue(*preloadRadius, "READER_PRELOAD_RADIUS", 2),
			CacheSizeMB:   getIntConfigValue(*cacheSize, "READER_CACHE_SIZE_MB", 64),
		},

		Share: ShareConfig{
			TokenKey: nil, // Will be set by auth.LoadOrGenerateKey in main
		},

		Watcher: WatcherConfig{},
	}

	// Parse reader durations.
	var err error
	if cfg.Reader.OpenTimeout, err = parseDurationValue(*openTimeout, "READER_OPEN_TIMEOUT", "10s"); err != nil {
		return nil, fmt.Errorf("invalid open timeout: %w", err)
	}
	if cfg.Reader.ChapterTimeout, err = parseDurationValue(*chapterTimeout, "READER_CHAPTER_TIMEOUT", "5s"); err != nil {
		return nil, fmt.Errorf("invalid chapter timeout: %w", err)
	}
	if cfg.Reader.FlipDuration, err = parseDurationValue(*flipDuration, "READER_FLIP_DURATION", "400ms"); err != nil {
		return nil, fmt.Errorf("invalid flip duration: %w", err)
	}
	if cfg.Reader.PersistDebounce, err = parseDurationValue(*persistDebounce, "READER_PERSIST_DEBOUNCE", "2s"); err != nil {
		return nil, fmt.Errorf("invalid persist debounce: %w", err)
	}
	if cfg.Reader.RestoreSettle, err = parseDurationValue(*restoreSettle, "READER_RESTORE_SETTLE", "150ms"); err != nil {
		return nil, fmt.Errorf("invalid restore settle: %w", err)
	}

	// Parse share duration.
	if cfg.Share.DefaultDuration, err = parseDurationValue(*shareDuration, "SHARE_DURATION", "168h"); err != nil {
		return nil, fmt.Errorf("invalid share duration: %w", err)
	}
	if cfg.Share.SessionDuration, err = parseDurationValue(*shareSession, "SHARE_SESSION_DURATION", "24h"); err != nil {
		return nil, fmt.Errorf("invalid share session duration: %w", err)
	}

	// Parse watcher settle delay.
	if cfg.Watcher.SettleDelay, err = parseDurationValue(*watcherSettle, "WATCHER_SETTLE_DELAY", "2s"); err != nil {
		return nil, fmt.Errorf("invalid watcher settle delay: %w", err)
	}

	// Parse server timeouts.
	if cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}

	// Expand and validate data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Expand and validate book path.
	if err := cfg.expandBookPath(); err != nil {
		return nil, fmt.Errorf("invalid book path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	// BookPath can be empty - library can be configured via API setup flow

	if c.Reader.ProgressRate <= 0 {
		return fmt.Errorf("progress rate must be positive, got %d", c.Reader.ProgressRate)
	}
	if c.Reader.PreloadRadius < 0 {
		return fmt.Errorf("preload radius cannot be negative, got %d", c.Reader.PreloadRadius)
	}
	if c.Reader.CacheSizeMB <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.Reader.CacheSizeMB)
	}
	if c.Reader.FlipDuration <= 0 {
		return errors.New("flip duration must be positive")
	}

	return nil
}

// DatabasePath returns the badger database directory under the data root.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.BasePath, "db")
}

// IndexPath returns the search index directory under the data root.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Data.BasePath, "index")
}

// CoversPath returns the extracted covers directory under the data root.
func (c *Config) CoversPath() string {
	return filepath.Join(c.Data.BasePath, "covers")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Shiori", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// expandBookPath expands ~ and makes the path absolute.
// If empty, leaves it empty to allow setup via API.
func (c *Config) expandBookPath() error {
	// Allow empty path - library can be configured via API
	if c.Library.BookPath == "" {
		return nil
	}

	expanded, err := expandPath(c.Library.BookPath, "")
	if err != nil {
		return err
	}
	c.Library.BookPath = expanded
	return nil
}

// parseDurationValue resolves a duration from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", strValue, err)
	}
	return d, nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
