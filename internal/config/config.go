// Package config loads palak settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/capture"
)

// Config holds the process-level settings.
type Config struct {
	Addr      string
	DataDir   string
	CameraID  int
	FPS       int
	PluginDir string
	WebDir    string
	TraceDir  string

	LogLevel    string
	Environment string
	Tray        bool

	Blink                  blink.Config
	UncalibratedWarnFrames int
}

// IsDev reports whether the process runs in development mode.
func (c *Config) IsDev() bool {
	return c.Environment != "production"
}

// DBPath returns the sqlite database location inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "palak.db")
}

// Load reads the given .env files (default ".env"), then the environment.
// Missing .env files are not an error; malformed values are.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	dataDir := getEnv("PALAK_DATA_DIR", filepath.Join(homeDir, ".palak"))

	p := &parser{}
	cfg := &Config{
		Addr:        getEnv("PALAK_ADDR", ":8080"),
		DataDir:     dataDir,
		CameraID:    p.int("PALAK_CAMERA_ID", 0),
		FPS:         p.int("PALAK_FPS", capture.DefaultFPS),
		PluginDir:   getEnv("PALAK_PLUGIN_DIR", filepath.Join(dataDir, "plugins")),
		WebDir:      getEnv("PALAK_WEB_DIR", ""),
		TraceDir:    getEnv("PALAK_TRACE_DIR", ""),
		LogLevel:    getEnv("PALAK_LOG_LEVEL", "info"),
		Environment: getEnv("PALAK_ENV", "dev"),
		Tray:        p.bool("PALAK_TRAY", true),
		Blink: blink.Config{
			WindowSize:      p.int("PALAK_WINDOW_SIZE", blink.DefaultWindowSize),
			CalibrationMin:  p.float("PALAK_CALIBRATION_MIN", blink.DefaultCalibrationMin),
			ClosureRatio:    p.float("PALAK_CLOSURE_RATIO", blink.DefaultClosureRatio),
			InitialBaseline: p.float("PALAK_INITIAL_BASELINE", blink.DefaultInitialBaseline),
		},
		UncalibratedWarnFrames: p.int("PALAK_UNCALIBRATED_WARN_FRAMES", 150),
	}

	if p.err != nil {
		return nil, p.err
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("PALAK_FPS must be positive, got %d", cfg.FPS)
	}
	if cfg.UncalibratedWarnFrames < 0 {
		return nil, fmt.Errorf("PALAK_UNCALIBRATED_WARN_FRAMES must not be negative, got %d", cfg.UncalibratedWarnFrames)
	}
	if err := cfg.Blink.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) float(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) bool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, raw, err)
	}
}
