package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Config holds the service, CLI and batch settings.
type Config struct {
	// Cutout provider
	CutoutURL string `json:"cutout_url"`
	StrokePx  int    `json:"stroke_px"`
	Shadow    bool   `json:"shadow"`

	// HTTP service
	ListenAddr           string   `json:"listen_addr"`
	AllowedOrigins       []string `json:"allowed_origins"`
	AllowedOriginPattern string   `json:"allowed_origin_pattern"`
	MaxUploadBytes       int64    `json:"max_upload_bytes"`
	RequestTimeoutSec    int      `json:"request_timeout_sec"`

	// Composition defaults
	DefaultScale  float64 `json:"default_scale"`
	DefaultAnchor string  `json:"default_anchor"`

	// Batch
	OutputDir string `json:"output_dir"`
	Workers   int    `json:"workers"`

	LogLevel string `json:"log_level"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.CutoutURL != "" {
		c.CutoutURL = flags.CutoutURL
	}
	if flags.ListenAddr != "" {
		c.ListenAddr = flags.ListenAddr
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}

	// Environment fallback for the provider endpoint
	if c.CutoutURL == "" {
		c.CutoutURL = os.Getenv("CUTOUT_URL")
	}

	if c.ListenAddr == "" {
		c.ListenAddr = ":8000"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"https://hypao.fun",
			"https://www.hypao.fun",
		}
	}
	if c.AllowedOriginPattern == "" {
		c.AllowedOriginPattern = `^https://.*\.vercel\.app$`
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 20 << 20
	}
	if c.RequestTimeoutSec <= 0 {
		c.RequestTimeoutSec = 60
	}
	if c.StrokePx < 0 {
		c.StrokePx = 0
	}

	if c.DefaultScale <= 0 {
		c.DefaultScale = 0.30
	}
	if c.DefaultAnchor == "" {
		c.DefaultAnchor = "left_shoulder"
	}

	if c.OutputDir == "" {
		c.OutputDir = "composed"
	} else {
		c.OutputDir = filepath.Clean(c.OutputDir)
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	CutoutURL  string
	ListenAddr string
	OutputDir  string
	Workers    int
	LogLevel   string
}
