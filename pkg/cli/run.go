package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiprobe/pkg/config"
	"github.com/devicelab-dev/uiprobe/pkg/executor"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
	"github.com/devicelab-dev/uiprobe/pkg/report"
	"github.com/devicelab-dev/uiprobe/pkg/scenario"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenarios",
	ArgsUsage: "[scenario...]",
	Description: `Run the named scenarios, or all of them when none is given.

Reports are generated in the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  uiprobe run
  uiprobe run device-exploration
  uiprobe run --filter header web-home
  uiprobe run -e USER=qa login`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "filter",
			Usage: "Only run cases whose name contains this text",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Environment variable for scripts (KEY=VALUE)",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip the remaining scenarios after the first failure",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Write reports directly into --output (no timestamp subfolder)",
		},
	},
	Action: runScenarios,
}

func runScenarios(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Env == nil {
		cfg.Env = make(map[string]string)
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		cfg.Env[k] = v // CLI overrides workspace config
	}

	registry, err := scenario.NewRegistry(cfg)
	if err != nil {
		return err
	}
	groups, err := registry.Select(c.Args().Slice())
	if err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(cfg.Output, c.Bool("flatten"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logPath := filepath.Join(outputDir, "uiprobe.log")
	if err := logger.Init(logPath); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	logger.Info("=== Run started ===")
	logger.Info("Output directory: %s", outputDir)
	logger.Info("Appium: %s, device: %s", cfg.Appium.URL, cfg.Android.DeviceName)
	logger.Info("Base URL: %s (headless: %v)", cfg.Web.BaseURL, cfg.Web.Headless)

	// Ctrl+C cancels the run; open sessions are still released.
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := progress{w: c.App.Writer}
	runner := executor.New(executor.RunnerConfig{
		OutputDir:     outputDir,
		Filter:        c.String("filter"),
		StopOnFail:    c.Bool("stop-on-fail"),
		Target:        targetFor(cfg),
		RunnerVersion: Version,
		OnGroupStart:  out.groupStart,
		OnCaseEnd:     out.caseEnd,
		OnGroupEnd:    out.groupEnd,
	})

	result, err := runner.Run(ctx, groups)
	if result != nil {
		printSummary(c.App.Writer, result)
	}
	if err != nil {
		logger.Error("Run failed: %v", err)
		return err
	}
	logger.Info("Run %s finished: %s", result.RunID, result.Status)

	fmt.Fprintln(c.App.Writer, "  Reports:")
	fmt.Fprintf(c.App.Writer, "    JSON:   %s\n", filepath.Join(outputDir, "report.json"))
	fmt.Fprintf(c.App.Writer, "    JUnit:  %s\n", filepath.Join(outputDir, "junit-report.xml"))
	fmt.Fprintf(c.App.Writer, "    Log:    %s\n", logPath)

	if !result.Passed() {
		return cli.Exit("", 1)
	}
	return nil
}

func targetFor(cfg *config.Config) report.Target {
	return report.Target{
		AppiumURL:  cfg.Appium.URL,
		DeviceName: cfg.Android.DeviceName,
		UDID:       cfg.Android.UDID,
		App:        cfg.Android.AppPackage + "/" + cfg.Android.AppActivity,
		BaseURL:    cfg.Web.BaseURL,
		Headless:   cfg.Web.Headless,
	}
}

// resolveOutputDir determines the output directory.
// - <output>/<timestamp>/ by default
// - <output>/ with --flatten (error if no output is configured)
// An empty output falls back to the reports directory under the home dir.
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}
	if output == "" {
		output = config.GetReportsDir()
	}
	if flatten {
		return filepath.Clean(output), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(output, timestamp), nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
