package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable the tool reads
const EnvPrefix = "IGEPUB_"

// Config holds all configuration options for the fetch and build pipeline
type Config struct {
	// Instagram session and request settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Request pacing against the platform API
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Fetch loop behaviour
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Working image directory and posts document
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Chapter layout files
	Layout LayoutConfig `yaml:"layout" json:"layout"`

	// Archive metadata and rendering
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Image download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Metrics textfile output
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds Instagram-specific configuration
type InstagramConfig struct {
	DefaultSession string        `yaml:"default_session" json:"default_session"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds API request pacing
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// FetchConfig holds the fetch loop settings
type FetchConfig struct {
	Delay            time.Duration `yaml:"delay" json:"delay"`
	ProgressInterval int           `yaml:"progress_interval" json:"progress_interval"`
	MaxPosts         int           `yaml:"max_posts" json:"max_posts"`
}

// StorageConfig holds on-disk locations shared by fetch and build
type StorageConfig struct {
	ImageDir  string `yaml:"image_dir" json:"image_dir"`
	PostsFile string `yaml:"posts_file" json:"posts_file"`
}

// LayoutConfig locates the chapter template pair
type LayoutConfig struct {
	Dir      string `yaml:"dir" json:"dir"`
	HTMLFile string `yaml:"html_file" json:"html_file"`
	CSSFile  string `yaml:"css_file" json:"css_file"`
}

// ArchiveConfig holds archive metadata defaults
type ArchiveConfig struct {
	Output             string `yaml:"output" json:"output"`
	Author             string `yaml:"author" json:"author"`
	Language           string `yaml:"language" json:"language"`
	Identifier         string `yaml:"identifier" json:"identifier"`
	TitleFormat        string `yaml:"title_format" json:"title_format"`
	DateFormat         string `yaml:"date_format" json:"date_format"`
	CaptionPlaceholder string `yaml:"caption_placeholder" json:"caption_placeholder"`
	MaxImageWidth      int    `yaml:"max_image_width" json:"max_image_width"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	SafeURLs bool          `yaml:"safe_urls" json:"safe_urls"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// MetricsConfig holds the Prometheus textfile location; empty disables it
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			Timeout:   30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         1,
		},
		Fetch: FetchConfig{
			Delay:            time.Second,
			ProgressInterval: 10,
		},
		Storage: StorageConfig{
			ImageDir:  "temp_images",
			PostsFile: "posts_data.json",
		},
		Layout: LayoutConfig{
			Dir:      "book_layout",
			HTMLFile: "layout.html",
			CSSFile:  "layout.css",
		},
		Archive: ArchiveConfig{
			Output:             "output.epub",
			Author:             "Instagram Collection",
			Language:           "ja",
			TitleFormat:        "Post %d: %s",
			DateFormat:         "2006-01-02",
			CaptionPlaceholder: "（説明文なし）",
		},
		Download: DownloadConfig{
			Timeout:  30 * time.Second,
			SafeURLs: true,
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from IGEPUB_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	setString("SESSION", &c.Instagram.DefaultSession)
	setString("USER_AGENT", &c.Instagram.UserAgent)
	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setDuration("FETCH_DELAY", &c.Fetch.Delay)
	setInt("MAX_POSTS", &c.Fetch.MaxPosts)
	setString("IMAGE_DIR", &c.Storage.ImageDir)
	setString("POSTS_FILE", &c.Storage.PostsFile)
	setString("LAYOUT_DIR", &c.Layout.Dir)
	setString("OUTPUT", &c.Archive.Output)
	setString("AUTHOR", &c.Archive.Author)
	setString("LANGUAGE", &c.Archive.Language)
	setInt("MAX_IMAGE_WIDTH", &c.Archive.MaxImageWidth)
	setString("METRICS_TEXTFILE", &c.Metrics.Textfile)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	if v := os.Getenv(EnvPrefix + "NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv(EnvPrefix + "SAFE_URLS"); v != "" {
		c.Download.SafeURLs = strings.ToLower(v) != "false"
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"igepub.yaml",
		".igepub.yaml",
		".igepub.yml",
		filepath.Join(home, ".config", "igepub", "config.yaml"),
		filepath.Join(home, ".config", "igepub", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Fetch.Delay < 0 {
		errs = append(errs, errors.New("fetch delay cannot be negative"))
	}
	if c.Fetch.ProgressInterval <= 0 {
		errs = append(errs, errors.New("progress interval must be positive"))
	}
	if c.Fetch.MaxPosts < 0 {
		errs = append(errs, errors.New("max posts cannot be negative"))
	}

	if c.Storage.ImageDir == "" {
		errs = append(errs, errors.New("image directory is required"))
	}
	if c.Storage.PostsFile == "" {
		errs = append(errs, errors.New("posts file is required"))
	}

	if c.Layout.Dir == "" || c.Layout.HTMLFile == "" || c.Layout.CSSFile == "" {
		errs = append(errs, errors.New("layout directory, html file and css file are required"))
	}

	if c.Archive.Output == "" {
		errs = append(errs, errors.New("archive output path is required"))
	}
	if c.Archive.Language == "" {
		errs = append(errs, errors.New("archive language is required"))
	}
	if verbs := formatVerbs(c.Archive.TitleFormat); verbs != "ds" {
		errs = append(errs, fmt.Errorf("archive title format must contain a %%d index followed by a %%s label, got %q", c.Archive.TitleFormat))
	}
	if c.Archive.MaxImageWidth < 0 {
		errs = append(errs, errors.New("max image width cannot be negative"))
	}

	if c.Instagram.Timeout <= 0 {
		errs = append(errs, errors.New("instagram timeout must be positive"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, errors.New("log format must be console or json"))
	}

	return errors.Join(errs...)
}

// LayoutPaths returns the html and css file paths of the configured layout
func (c *Config) LayoutPaths() (htmlPath, cssPath string) {
	return filepath.Join(c.Layout.Dir, c.Layout.HTMLFile), filepath.Join(c.Layout.Dir, c.Layout.CSSFile)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if session, ok := flags["session"].(string); ok && session != "" {
		c.Instagram.DefaultSession = session
	}
	if delay, ok := flags["delay"].(time.Duration); ok && delay >= 0 {
		c.Fetch.Delay = delay
	}
	if maxPosts, ok := flags["max-posts"].(int); ok && maxPosts >= 0 {
		c.Fetch.MaxPosts = maxPosts
	}
	if dir, ok := flags["image-dir"].(string); ok && dir != "" {
		c.Storage.ImageDir = dir
	}
	if file, ok := flags["posts-file"].(string); ok && file != "" {
		c.Storage.PostsFile = file
	}
	if dir, ok := flags["layout-dir"].(string); ok && dir != "" {
		c.Layout.Dir = dir
	}
	if author, ok := flags["author"].(string); ok && author != "" {
		c.Archive.Author = author
	}
	if lang, ok := flags["language"].(string); ok && lang != "" {
		c.Archive.Language = lang
	}
	if notify, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = notify
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igepub.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// formatVerbs returns the printf verbs of format in order, skipping %% and
// any flags, width or precision. "Post %03d: %s" yields "ds".
func formatVerbs(format string) string {
	var verbs strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		for i < len(format) && strings.IndexByte("+-# 0123456789.[]*", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			verbs.WriteByte('!')
			break
		}
		if format[i] != '%' {
			verbs.WriteByte(format[i])
		}
	}
	return verbs.String()
}
