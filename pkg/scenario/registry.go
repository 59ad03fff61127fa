package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/uiprobe/pkg/browser"
	"github.com/devicelab-dev/uiprobe/pkg/config"
	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/session"
	"github.com/devicelab-dev/uiprobe/pkg/suite"
)

// Registry is the set of groups a run can pick from.
type Registry struct {
	groups []suite.Runnable
}

// NewRegistry collects the built-in groups and the scripted ones named by
// cfg. Group names must be unique.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	scripted, err := FromScripts(cfg)
	if err != nil {
		return nil, err
	}

	r := &Registry{}
	seen := make(map[string]bool)
	for _, g := range append(Builtin(cfg), scripted...) {
		name := strings.ToLower(g.GroupName())
		if seen[name] {
			return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("duplicate scenario name %q", g.GroupName()))
		}
		seen[name] = true
		r.groups = append(r.groups, g)
	}
	return r, nil
}

// All returns every group in registration order.
func (r *Registry) All() []suite.Runnable {
	return r.groups
}

// Names returns the group names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.groups))
	for i, g := range r.groups {
		names[i] = g.GroupName()
	}
	return names
}

// Select returns the named groups in the order given. No names selects all.
// Names match case-insensitively; an unknown name is a config error listing
// what is available.
func (r *Registry) Select(names []string) ([]suite.Runnable, error) {
	if len(names) == 0 {
		return r.groups, nil
	}

	var out []suite.Runnable
	for _, name := range names {
		g := r.lookup(name)
		if g == nil {
			return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf(
				"unknown scenario %q (available: %s)", name, strings.Join(r.Names(), ", ")))
		}
		out = append(out, g)
	}
	return out, nil
}

func (r *Registry) lookup(name string) suite.Runnable {
	for _, g := range r.groups {
		if strings.EqualFold(g.GroupName(), name) {
			return g
		}
	}
	return nil
}

// Builtin returns the groups compiled into uiprobe, opened against cfg.
func Builtin(cfg *config.Config) []suite.Runnable {
	return []suite.Runnable{
		DeviceExploration(AndroidSession(cfg)),
		WebHome(cfg.Web.BaseURL, cfg.Web.Timeout, WebSession(cfg)),
	}
}

// FromScripts returns one group per script matched by cfg.Scripts. With no
// patterns configured, *.js under the scenarios directory is used; a missing
// directory yields no groups.
func FromScripts(cfg *config.Config) ([]suite.Runnable, error) {
	patterns := cfg.Scripts
	if len(patterns) == 0 {
		patterns = []string{filepath.Join(config.GetScenariosDir(), "*.js")}
	}

	var paths []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("bad script pattern %q", pattern)).WithCause(err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || info.IsDir() || seen[m] {
				continue
			}
			seen[m] = true
			paths = append(paths, m)
		}
	}

	groups := make([]suite.Runnable, 0, len(paths))
	for _, p := range paths {
		groups = append(groups, Scripted(p, cfg.Env, AndroidSession(cfg)))
	}
	return groups, nil
}

// AndroidSession returns an opener for the configured Appium session.
func AndroidSession(cfg *config.Config) AndroidOpener {
	return func(ctx context.Context) (*session.Android, error) {
		return session.OpenAndroid(ctx, cfg.Appium, cfg.Android)
	}
}

// WebSession returns an opener for the configured Chrome session.
func WebSession(cfg *config.Config) func(ctx context.Context) (Page[*browser.Element], error) {
	return func(ctx context.Context) (Page[*browser.Element], error) {
		web, err := session.OpenWeb(ctx, cfg.Web)
		if err != nil {
			return nil, err
		}
		return web, nil
	}
}
