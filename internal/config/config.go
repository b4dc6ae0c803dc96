package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/pageloader/internal/fetch"
	"github.com/nao1215/pageloader/internal/pipeline"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pageloader"

	// DefaultTimeout bounds each HTTP request, body included.
	DefaultTimeout = fetch.DefaultTimeout

	// DefaultConcurrency is the number of simultaneous asset fetches per page.
	DefaultConcurrency = pipeline.DefaultConcurrency

	// DefaultBatchSize is the number of pages loaded at once when several
	// URLs are given. Pages of the same site are loaded one at a time by
	// default to stay polite.
	DefaultBatchSize = pipeline.DefaultBatchSize

	// DefaultRateLimit disables request throttling.
	DefaultRateLimit = 0.0

	// DefaultUserAgent identifies pageloader in HTTP requests.
	DefaultUserAgent = fetch.DefaultUserAgent

	// DefaultMaxBodySize caps each response body.
	DefaultMaxBodySize = fetch.DefaultMaxBodySize

	// DefaultHistoryLimit is the number of runs listed by the history command.
	DefaultHistoryLimit = 20
)

// Config holds all configuration options for pageloader.
// It is populated from CLI flags and the optional configuration file and
// passed down explicitly; there is no global state.
type Config struct {
	// OutputDir is the directory pages are saved into.
	// Empty means the current working directory.
	OutputDir string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Concurrency is the maximum number of simultaneous asset fetches per page.
	Concurrency int

	// BatchSize is the number of pages loaded concurrently.
	BatchSize int

	// RateLimit is the maximum number of requests per second across the
	// whole run. Zero disables throttling.
	RateLimit float64

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// MaxBodySize is the maximum response body size in bytes.
	// Larger responses fail instead of being truncated.
	MaxBodySize int64

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the default locations are searched.
	ConfigFilePath string

	// SiteConfigs holds per-host settings loaded from the configuration file.
	// Nil when no file was found.
	SiteConfigs *File

	// Report prints a human-readable report of each load.
	Report bool

	// JSONReport prints a JSON report instead of the path.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints a Markdown report instead of the path.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// SaveHistory records each load in the history database.
	SaveHistory bool

	// DBDir is the directory of the history database.
	DBDir string

	// Targets are the page URLs to load.
	Targets []string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		BatchSize:   DefaultBatchSize,
		RateLimit:   DefaultRateLimit,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		SaveHistory: true,
		DBDir:       XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for pageloader.
// On Linux: ~/.local/share/pageloader
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pageloader.
// On Linux: ~/.config/pageloader
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	for _, target := range c.Targets {
		if !isHTTPURL(target) {
			return &InvalidTargetError{Target: target}
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// SiteConfigFor returns the merged site configuration for the host of
// pageURL. It returns the zero value when no configuration file is loaded.
func (c *Config) SiteConfigFor(pageURL string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return c.SiteConfigs.Defaults
	}
	return c.SiteConfigs.GetSiteConfig(u.Host)
}

// isHTTPURL reports whether raw is an absolute http(s) URL with a host.
func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}
