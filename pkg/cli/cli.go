// Package cli provides the command-line interface for uiprobe.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiprobe/pkg/config"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to uiprobe.yaml (default: ./uiprobe.yaml if present)",
		EnvVars: []string{"UIPROBE_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "appium-url",
		Usage: "Appium server URL",
	},
	&cli.StringFlag{
		Name:  "device",
		Usage: "Android device name",
	},
	&cli.StringFlag{
		Name:  "udid",
		Usage: "Android device UDID",
	},
	&cli.StringFlag{
		Name:  "base-url",
		Usage: "Base URL for web scenarios",
	},
	&cli.BoolFlag{
		Name:    "headless",
		Usage:   "Run Chrome headless",
		EnvVars: []string{"UIPROBE_HEADLESS", "HEADLESS"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"UIPROBE_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Report directory",
	},
}

// NewApp builds the uiprobe application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "uiprobe",
		Usage:   "UI test runner for Android (Appium) and web (Chrome)",
		Version: Version,
		Description: `uiprobe runs UI test scenarios against an Appium session on an
Android device and a Chrome session on a web site. Elements are located
through ordered fallback candidates so one scenario works across vendors.

Examples:
  uiprobe list
  uiprobe run
  uiprobe --device emulator-5554 run device-exploration
  uiprobe --headless run web-home
  uiprobe probe --strategy id com.android.settings:id/search_src_text com.samsung.android.settings.search:id/search_src_text`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			logger.SetVerbose(c.Bool("verbose"))
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			listCommand,
			probeCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration: file, then environment, then
// flags. The result is validated.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if c.IsSet("appium-url") {
		cfg.Appium.URL = c.String("appium-url")
	}
	if c.IsSet("device") {
		cfg.Android.DeviceName = c.String("device")
	}
	if c.IsSet("udid") {
		cfg.Android.UDID = c.String("udid")
	}
	if c.IsSet("base-url") {
		cfg.Web.BaseURL = c.String("base-url")
	}
	if c.IsSet("headless") {
		cfg.Web.Headless = c.Bool("headless")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
