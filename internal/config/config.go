// Package config loads devicecheck settings from defaults, an optional YAML
// file, a .env file and DEVICECHECK_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/treyturner/ninjaone-e2e/internal/browser"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "DEVICECHECK_"

// Config holds everything a devicecheck run needs.
type Config struct {
	APIURL        string        `yaml:"api_url"`
	UIURL         string        `yaml:"ui_url"`
	APIToken      string        `yaml:"api_token"`
	Browser       string        `yaml:"browser"`
	Headless      bool          `yaml:"headless"`
	URLTimeout    time.Duration `yaml:"url_timeout"`
	SettleTimeout time.Duration `yaml:"settle_timeout"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		APIURL:        "http://localhost:3000",
		UIURL:         "http://localhost:3001",
		Browser:       browser.Chromium,
		Headless:      true,
		URLTimeout:    3 * time.Second,
		SettleTimeout: 3 * time.Second,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), ./.env when present and the environment. The result is
// not validated; callers apply flag overrides first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv exports the variables in ./.env that are not already set. A
// missing file is not an error; an unreadable or malformed one is.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from non-empty variables returned by lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	for name, dst := range map[string]*string{
		"API_URL":    &c.APIURL,
		"UI_URL":     &c.UIURL,
		"API_TOKEN":  &c.APIToken,
		"BROWSER":    &c.Browser,
		"LOG_LEVEL":  &c.LogLevel,
		"LOG_FORMAT": &c.LogFormat,
	} {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	if v, ok := get("HEADLESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sHEADLESS: %w", EnvPrefix, err)
		}
		c.Headless = b
	}
	if v, ok := get("URL_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sURL_TIMEOUT: %w", EnvPrefix, err)
		}
		c.URLTimeout = d
	}
	if v, ok := get("SETTLE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSETTLE_TIMEOUT: %w", EnvPrefix, err)
		}
		c.SettleTimeout = d
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	for _, f := range []struct{ name, value string }{
		{"api_url", c.APIURL},
		{"ui_url", c.UIURL},
	} {
		if err := validateURL(f.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
		}
	}
	if !slices.Contains(browser.Backends, c.Browser) {
		errs = append(errs, fmt.Errorf("browser: %q is not one of %s", c.Browser, strings.Join(browser.Backends, ", ")))
	}
	if c.URLTimeout <= 0 {
		errs = append(errs, fmt.Errorf("url_timeout: must be positive, got %s", c.URLTimeout))
	}
	if c.SettleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("settle_timeout: must be positive, got %s", c.SettleTimeout))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format: %q is not text or json", c.LogFormat))
	}
	return errors.Join(errs...)
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("must not be empty")
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}

// NewLogger returns a logger writing to w at the configured level and format.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
