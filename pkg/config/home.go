package config

import (
	"os"
	"path/filepath"
	"sync"
)

// envHome overrides every other home lookup. CI jobs set it so reports land
// in the workspace instead of next to a shared install.
const envHome = "UIPROBE_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the directory uiprobe writes reports under and searches
// for scenario scripts. It is resolved once per process:
//
//   - $UIPROBE_HOME when set.
//   - <home> when the running binary is <home>/bin/uiprobe, the layout of a
//     release archive, so an installed copy finds its bundled scenarios
//     wherever it is invoked from.
//   - The working directory otherwise, which is what `go run ./cmd/uiprobe`
//     inside a checkout wants.
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetReportsDir returns <home>/reports, the default for --output.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

// GetScenariosDir returns <home>/scenarios, searched for scripted scenarios
// when the config names none.
func GetScenariosDir() string {
	return filepath.Join(GetHome(), "scenarios")
}

func resolveHome() string {
	exe, err := os.Executable()
	if err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
	}
	cwd, _ := os.Getwd()
	return homeFrom(os.Getenv(envHome), exe, cwd)
}

// homeFrom applies the GetHome order to already gathered values. exe is the
// symlink-free binary path; empty values are skipped.
func homeFrom(env, exe, cwd string) string {
	if env != "" {
		return env
	}
	if exe != "" {
		if dir := filepath.Dir(exe); filepath.Base(dir) == "bin" {
			return filepath.Dir(dir)
		}
	}
	if cwd != "" {
		return cwd
	}
	return "."
}

// ResetHome forgets the resolved home so tests can change $UIPROBE_HOME.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
