// Package scenario holds the test groups uiprobe ships with and the ones
// loaded from scripts.
package scenario

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/uiprobe/pkg/actions"
	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/jsengine"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
	"github.com/devicelab-dev/uiprobe/pkg/session"
	"github.com/devicelab-dev/uiprobe/pkg/suite"
)

// AndroidOpener creates the Appium session for an Android group.
type AndroidOpener func(ctx context.Context) (*session.Android, error)

// SearchInputIDs are the settings search field ids across vendors, in the
// order they are tried.
var SearchInputIDs = []string{
	"com.android.settings:id/search_src_text",                // AOSP
	"com.samsung.android.settings.search:id/search_src_text", // Samsung
	"com.android.settings.intelligence:id/search_src_text",   // settings intelligence
}

// DeviceExploration searches the Settings app for "About phone" and opens
// its software information page.
func DeviceExploration(open AndroidOpener) *suite.Group[*session.Android] {
	return &suite.Group[*session.Android]{
		Name:        "device-exploration",
		Description: "Search Settings for About phone and open Software information",
		Open:        open,
		Cases: []suite.Case[*session.Android]{
			{Name: "explore about phone", Body: exploreAboutPhone},
		},
	}
}

func exploreAboutPhone(ctx context.Context, s *session.Android) error {
	d := s.Device

	if err := d.ClickByAccessibilityID(ctx, "Search settings"); err != nil {
		return err
	}
	logger.Info("search button clicked")

	input, ok := d.WaitForElementByID(ctx, SearchInputIDs...)
	if !ok {
		return core.ErrElementNotFound.
			WithMessage("search input not found after waiting; tried " + strings.Join(SearchInputIDs, ", ")).
			WithDetails(map[string]interface{}{"candidates": SearchInputIDs})
	}
	if err := d.TypeText(ctx, input, "About phone"); err != nil {
		return err
	}
	logger.Info("typed 'About phone'")

	// Fragile: relies on the result row position.
	if err := d.ClickByUiSelector(ctx, "android.widget.LinearLayout", 2); err != nil {
		return err
	}
	logger.Info("clicked 'About phone' result")

	if err := d.SwipeDown(ctx); err != nil {
		return err
	}
	logger.Info("swiped down")

	if err := d.ClickByUiAutomator(ctx, actions.UiSelectorText("Software information")); err != nil {
		return err
	}
	logger.Info("opened 'Software information'")
	return nil
}

// Scripted builds a group that runs the JavaScript file at path against an
// Android session. env is exposed to the script as `env`.
func Scripted(path string, env map[string]string, open AndroidOpener) *suite.Group[*session.Android] {
	name := ScriptName(path)
	return &suite.Group[*session.Android]{
		Name:        name,
		Description: "Script " + path,
		Open:        open,
		Cases: []suite.Case[*session.Android]{{
			Name: name,
			Body: func(ctx context.Context, s *session.Android) error {
				engine := jsengine.New()
				defer engine.Close()

				engine.SetEnv(env)
				engine.BindDevice(s.Device)
				if err := engine.RunFile(ctx, path); err != nil {
					return err
				}
				if out := engine.GetOutput(); len(out) > 0 {
					logger.Info("script %s output: %v", name, out)
				}
				return nil
			},
		}},
	}
}

// ScriptName derives a group name from a script path: the file name
// without its extension.
func ScriptName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
