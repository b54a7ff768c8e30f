package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// TrackerConfig controls the flight playback-link resolver.
type TrackerConfig struct {
	// BaseURL is the flight tracker site, e.g. "https://www.flightradar24.com".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// CacheDir holds the HTTP revalidation cache for tracker pages.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone roster clock times are local to.
	Timezone string `yaml:"timezone" json:"timezone"`

	// SpoolDir is scanned for roster PDFs in watch mode.
	SpoolDir string `yaml:"spool_dir" json:"spool_dir"`

	// OutputDir receives generated .ics files in watch mode.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// WatchCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for spool directory scans.
	WatchCron string `yaml:"watch_cron" json:"watch_cron"`

	// MaxUploadMB caps roster uploads on the Web UI.
	MaxUploadMB int `yaml:"max_upload_mb" json:"max_upload_mb"`

	// UploadRatePerMin limits conversions per client per minute on the
	// Web UI. Zero disables the limit.
	UploadRatePerMin int `yaml:"upload_rate_per_min" json:"upload_rate_per_min"`

	Tracker TrackerConfig `yaml:"tracker" json:"tracker"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           "127.0.0.1:8080",
		Timezone:         "Europe/Warsaw",
		SpoolDir:         "./spool",
		OutputDir:        "./spool/out",
		WatchCron:        "*/15 * * * *",
		MaxUploadMB:      50,
		UploadRatePerMin: 10,
		Tracker: TrackerConfig{
			BaseURL:  "https://www.flightradar24.com",
			CacheDir: "./cache/tracker",
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.SpoolDir == "" {
		c.SpoolDir = def.SpoolDir
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.WatchCron == "" {
		c.WatchCron = def.WatchCron
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = def.MaxUploadMB
	}
	if c.UploadRatePerMin < 0 {
		c.UploadRatePerMin = 0
	}
	if c.Tracker.BaseURL == "" {
		c.Tracker.BaseURL = def.Tracker.BaseURL
	}
	if c.Tracker.CacheDir == "" {
		c.Tracker.CacheDir = def.Tracker.CacheDir
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 perms and returned.
//   - Otherwise the YAML is read, unmarshaled, and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".rostercal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
