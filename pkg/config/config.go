// Package config handles configuration for uiprobe.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/uiprobe/pkg/core"
)

// Config represents the workspace configuration (uiprobe.yaml).
type Config struct {
	Appium  AppiumConfig  `yaml:"appium"`
	Android AndroidConfig `yaml:"android"`
	Web     WebConfig     `yaml:"web"`

	// Scripted scenarios
	Scripts []string          `yaml:"scripts"` // Glob patterns for .js scenarios
	Env     map[string]string `yaml:"env"`     // Exposed to scripts as env

	Output string `yaml:"output"` // Report directory
}

// AppiumConfig locates the Appium server.
type AppiumConfig struct {
	URL            string        `yaml:"url"`
	RequestTimeout time.Duration `yaml:"requestTimeout"` // Per HTTP round-trip
}

// AndroidConfig holds the UiAutomator2 session capabilities.
type AndroidConfig struct {
	DeviceName        string        `yaml:"deviceName"`
	UDID              string        `yaml:"udid"`
	AutomationName    string        `yaml:"automationName"`
	AppPackage        string        `yaml:"appPackage"`
	AppActivity       string        `yaml:"appActivity"`
	NewCommandTimeout time.Duration `yaml:"newCommandTimeout"`
	Wait              time.Duration `yaml:"wait"` // Per-locator wait in helpers
}

// WebConfig holds the Chrome session settings.
type WebConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	Headless     bool          `yaml:"headless"`
	Timeout      time.Duration `yaml:"timeout"`
	WindowWidth  int           `yaml:"windowWidth"`
	WindowHeight int           `yaml:"windowHeight"`
	ChromePath   string        `yaml:"chromePath"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Appium: AppiumConfig{
			URL:            "http://127.0.0.1:4723",
			RequestTimeout: 2 * time.Minute,
		},
		Android: AndroidConfig{
			DeviceName:        "RZ8W90NJNKM",
			AutomationName:    "UiAutomator2",
			AppPackage:        "com.android.settings",
			AppActivity:       ".Settings",
			NewCommandTimeout: 60 * time.Second,
			Wait:              5 * time.Second,
		},
		Web: WebConfig{
			BaseURL:      "https://smartbuy-me.com/",
			Timeout:      15 * time.Second,
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Output: "reports",
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("parse %s", path)).WithCause(err)
	}

	return cfg, nil
}

// LoadFromDir looks for uiprobe.yaml or uiprobe.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"uiprobe.yaml", "uiprobe.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, return defaults
	return Default(), nil
}

// ApplyEnv overrides settings from environment variables. HEADLESS is
// honoured alongside UIPROBE_HEADLESS for CI systems that already set it.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("UIPROBE_APPIUM_URL"); v != "" {
		c.Appium.URL = v
	}
	if v := getenv("UIPROBE_DEVICE"); v != "" {
		c.Android.DeviceName = v
	}
	if v := getenv("UIPROBE_UDID"); v != "" {
		c.Android.UDID = v
	}
	if v := getenv("UIPROBE_BASE_URL"); v != "" {
		c.Web.BaseURL = v
	}
	for _, key := range []string{"HEADLESS", "UIPROBE_HEADLESS"} {
		v := getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s=%q is not a boolean", key, v))
		}
		c.Web.Headless = b
	}
	return nil
}

// Validate reports the first setting that cannot produce a working session.
func (c *Config) Validate() error {
	if err := validateURL("appium.url", c.Appium.URL); err != nil {
		return err
	}
	if c.Web.BaseURL != "" {
		if err := validateURL("web.baseURL", c.Web.BaseURL); err != nil {
			return err
		}
	}
	if c.Android.AppPackage == "" {
		return core.ErrMissingRequired.WithMessage("android.appPackage is required")
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"android.wait", c.Android.Wait},
		{"android.newCommandTimeout", c.Android.NewCommandTimeout},
		{"web.timeout", c.Web.Timeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s must be positive, got %s", d.name, d.d))
		}
	}
	return nil
}

func validateURL(name, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return core.ErrMissingRequired.WithMessage(name + " is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s %q is malformed", name, raw)).WithCause(err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s %q must be an http(s) URL", name, raw))
	}
	return nil
}
