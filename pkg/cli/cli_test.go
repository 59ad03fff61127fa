package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiprobe/pkg/config"
	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/report"
	"github.com/devicelab-dev/uiprobe/pkg/webdriver/webdrivertest"
)

// runApp runs the CLI with args and returns what it printed. Exit codes are
// returned as errors instead of terminating the test binary.
func runApp(t *testing.T, extra []*cli.Command, args ...string) (string, error) {
	t.Helper()
	oldEnabled := colorsEnabled
	colorsEnabled = false
	t.Cleanup(func() { colorsEnabled = oldEnabled })

	var out bytes.Buffer
	app := NewApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Commands = append(app.Commands, extra...)

	err := app.Run(append([]string{"uiprobe"}, args...))
	return out.String(), err
}

// dumpConfig is a test command exposing the resolved configuration.
func dumpConfig(dst **config.Config) *cli.Command {
	return &cli.Command{
		Name: "dump",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			*dst = cfg
			return err
		},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("UIPROBE_HOME", home)
	config.ResetHome()
	t.Cleanup(config.ResetHome)
	return home
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func TestResolveOutputDir_Default(t *testing.T) {
	dir, err := resolveOutputDir("reports", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(dir, "reports/") {
		t.Errorf("expected dir to start with reports/, got %s", dir)
	}
	// Should have timestamp subfolder
	parts := strings.Split(dir, "/")
	if len(parts) != 2 {
		t.Errorf("expected reports/<timestamp>, got %s", dir)
	}
}

func TestResolveOutputDir_Flatten(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != "my-reports" {
		t.Errorf("expected my-reports, got %s", dir)
	}
}

func TestResolveOutputDir_FlattenWithoutOutput(t *testing.T) {
	_, err := resolveOutputDir("", true)
	if err == nil || !strings.Contains(err.Error(), "--flatten requires --output") {
		t.Errorf("expected error about --flatten requiring --output, got: %v", err)
	}
}

func TestResolveOutputDir_EmptyUsesHome(t *testing.T) {
	home := isolateHome(t)

	dir, err := resolveOutputDir("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(dir, filepath.Join(home, "reports")) {
		t.Errorf("expected dir under %s, got %s", home, dir)
	}
}

func TestParseEnvVars(t *testing.T) {
	result := parseEnvVars([]string{"USER=test", "PASS=a=b", "EMPTY=", "INVALID"})

	if result["USER"] != "test" {
		t.Errorf("expected USER=test, got %s", result["USER"])
	}
	if result["PASS"] != "a=b" {
		t.Errorf("expected PASS=a=b, got %s", result["PASS"])
	}
	if v, ok := result["EMPTY"]; !ok || v != "" {
		t.Errorf("expected EMPTY='', got %q (present %v)", v, ok)
	}
	if _, ok := result["INVALID"]; ok {
		t.Error("INVALID should be ignored")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0ms"},
		{999, "999ms"},
		{1500, "1.5s"},
		{61000, "1m 1s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.ms); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestColor(t *testing.T) {
	oldEnabled := colorsEnabled
	defer func() { colorsEnabled = oldEnabled }()

	colorsEnabled = true
	if color(colorRed) != colorRed {
		t.Error("expected color code when enabled")
	}
	colorsEnabled = false
	if color(colorRed) != "" {
		t.Error("expected empty string when disabled")
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "uiprobe.yaml", `
appium:
  url: http://file-host:4723
android:
  deviceName: from-file
web:
  baseURL: https://file.example/
`)

	var cfg *config.Config
	_, err := runApp(t, []*cli.Command{dumpConfig(&cfg)},
		"--config", path,
		"--appium-url", "http://flag-host:4723",
		"--device", "emulator-5554",
		"--headless",
		"--output", "out",
		"dump")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Appium.URL != "http://flag-host:4723" {
		t.Errorf("Appium.URL = %s", cfg.Appium.URL)
	}
	if cfg.Android.DeviceName != "emulator-5554" {
		t.Errorf("DeviceName = %s", cfg.Android.DeviceName)
	}
	if cfg.Web.BaseURL != "https://file.example/" {
		t.Errorf("BaseURL = %s, want file value", cfg.Web.BaseURL)
	}
	if !cfg.Web.Headless {
		t.Error("Headless = false")
	}
	if cfg.Output != "out" {
		t.Errorf("Output = %s", cfg.Output)
	}
}

func TestLoadConfig_HeadlessEnv(t *testing.T) {
	for _, key := range []string{"HEADLESS", "UIPROBE_HEADLESS"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "true")

			var cfg *config.Config
			if _, err := runApp(t, []*cli.Command{dumpConfig(&cfg)}, "dump"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !cfg.Web.Headless {
				t.Errorf("%s=true did not enable headless", key)
			}
		})
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	var cfg *config.Config
	_, err := runApp(t, []*cli.Command{dumpConfig(&cfg)}, "--appium-url", "127.0.0.1:4723", "dump")
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	_, err = runApp(t, []*cli.Command{dumpConfig(&cfg)}, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "dump")
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Errorf("expected load error, got %v", err)
	}
}

func TestList(t *testing.T) {
	isolateHome(t)

	out, err := runApp(t, nil, "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"device-exploration", "explore about phone", "web-home", "header is visible"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

// scriptWorkspace writes a config whose scripts live in a temp dir.
func scriptWorkspace(t *testing.T, scripts map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range scripts {
		writeFile(t, dir, name, body)
	}
	return writeFile(t, dir, "uiprobe.yaml", `
android:
  wait: 50ms
scripts:
  - `+filepath.Join(dir, "*.js")+`
`)
}

func TestRun_ScriptedScenario(t *testing.T) {
	isolateHome(t)
	srv := webdrivertest.NewServer()
	defer srv.Close()
	srv.AddElement(core.ByAccessibilityID("Search settings"), webdrivertest.Visible(""))

	cfgPath := scriptWorkspace(t, map[string]string{
		"smoke.js": `device.clickByAccessibilityId("Search settings");`,
	})
	outDir := filepath.Join(t.TempDir(), "reports")

	out, err := runApp(t, nil,
		"--config", cfgPath,
		"--appium-url", srv.URL,
		"--output", outDir,
		"run", "--flatten", "smoke")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}

	if !strings.Contains(out, "[1/1]") || !strings.Contains(out, "smoke") {
		t.Errorf("missing progress output:\n%s", out)
	}
	if len(srv.Clicked()) != 1 {
		t.Errorf("clicked %v, want one click", srv.Clicked())
	}
	if srv.Quits() != 1 {
		t.Errorf("session quit %d times, want 1", srv.Quits())
	}

	index, err := report.ReadReport(outDir)
	if err != nil {
		t.Fatalf("ReadReport() error = %v", err)
	}
	if index.Status != core.StatusPassed {
		t.Errorf("report status = %s", index.Status)
	}
	if index.Target.AppiumURL != srv.URL {
		t.Errorf("target appium url = %s", index.Target.AppiumURL)
	}
	if _, err := os.Stat(filepath.Join(outDir, "junit-report.xml")); err != nil {
		t.Errorf("junit report missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "uiprobe.log")); err != nil {
		t.Errorf("log file missing: %v", err)
	}
}

func TestRun_FailureExitsNonZero(t *testing.T) {
	isolateHome(t)
	srv := webdrivertest.NewServer()
	defer srv.Close()

	cfgPath := scriptWorkspace(t, map[string]string{
		"broken.js": `device.clickById("idX", "idY");`,
	})
	outDir := t.TempDir()

	out, err := runApp(t, nil,
		"--config", cfgPath,
		"--appium-url", srv.URL,
		"--output", outDir,
		"run", "--flatten", "broken")

	if exitCode(err) != 1 {
		t.Fatalf("exit code = %d (err %v), want 1", exitCode(err), err)
	}
	if !strings.Contains(out, "id=idX") || !strings.Contains(out, "id=idY") {
		t.Errorf("failure output should name both candidates:\n%s", out)
	}
	if srv.Quits() != 1 {
		t.Errorf("session quit %d times, want 1", srv.Quits())
	}

	shot := filepath.Join(outDir, "artifacts", "broken", "broken.png")
	if data, err := os.ReadFile(shot); err != nil || !bytes.Equal(data, webdrivertest.Screenshot) {
		t.Errorf("failure screenshot %s: %v", shot, err)
	}
	index, err := report.ReadReport(outDir)
	if err != nil {
		t.Fatalf("ReadReport() error = %v", err)
	}
	if got := index.Groups[0].Cases[0].Attachments; len(got) != 2 {
		t.Errorf("attachments = %v, want screenshot and hierarchy", got)
	}
}

func TestRun_UnknownScenario(t *testing.T) {
	isolateHome(t)

	_, err := runApp(t, nil, "run", "checkout")
	if err == nil || !strings.Contains(err.Error(), `unknown scenario "checkout"`) {
		t.Errorf("expected unknown scenario error, got %v", err)
	}
}

func TestProbe_Resolves(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()
	srv.AddElement(core.ByID("idB"), webdrivertest.Visible(""))

	out, err := runApp(t, nil, "--appium-url", srv.URL, "probe", "--timeout", "20ms", "idA", "idB", "idC")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}

	for _, want := range []string{"resolving 3 candidate(s), 20ms each", "1. ✗ id=idA", "2. ✓ id=idB", "3. - id=idC (not tried)", "resolved id=idB"} {
		if !strings.Contains(out, want) {
			t.Errorf("probe output missing %q:\n%s", want, out)
		}
	}
	if srv.Quits() != 1 {
		t.Errorf("session quit %d times, want 1", srv.Quits())
	}
}

func TestProbe_NotFound(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()

	out, err := runApp(t, nil, "--appium-url", srv.URL, "probe", "--strategy", "aid", "--condition", "clickable", "--timeout", "20ms", "--interval", "5ms", "Nope")

	if exitCode(err) != 1 {
		t.Fatalf("exit code = %d (err %v), want 1", exitCode(err), err)
	}
	if !strings.Contains(out, "no clickable element") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestProbe_BadArguments(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()

	if _, err := runApp(t, nil, "--appium-url", srv.URL, "probe"); err == nil {
		t.Error("expected error without candidates")
	}
	if _, err := runApp(t, nil, "--appium-url", srv.URL, "probe", "--strategy", "link text", "x"); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for unknown strategy, got %v", err)
	}
	if _, err := runApp(t, nil, "--appium-url", srv.URL, "probe", "--condition", "shiny", "x"); err == nil {
		t.Error("expected error for unknown condition")
	}
	if len(srv.Requests()) != 0 {
		t.Errorf("no session should be opened for bad arguments, got %d requests", len(srv.Requests()))
	}
}
