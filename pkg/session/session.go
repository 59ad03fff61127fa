// Package session opens and releases the automation sessions a test group
// runs against. Each session is created once per group and released exactly
// once.
package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/devicelab-dev/uiprobe/pkg/actions"
	"github.com/devicelab-dev/uiprobe/pkg/browser"
	"github.com/devicelab-dev/uiprobe/pkg/config"
	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
	"github.com/devicelab-dev/uiprobe/pkg/webdriver"
)

// AndroidCapabilities builds the UiAutomator2 capabilities for cfg.
func AndroidCapabilities(cfg config.AndroidConfig) map[string]interface{} {
	automation := cfg.AutomationName
	if automation == "" {
		automation = "UiAutomator2"
	}
	caps := map[string]interface{}{
		"platformName":             "Android",
		"appium:deviceName":        cfg.DeviceName,
		"appium:automationName":    automation,
		"appium:appPackage":        cfg.AppPackage,
		"appium:appActivity":       cfg.AppActivity,
		"appium:newCommandTimeout": int(cfg.NewCommandTimeout.Seconds()),
	}
	if cfg.UDID != "" {
		caps["appium:udid"] = cfg.UDID
	}
	return caps
}

// Android is an Appium session on a device.
type Android struct {
	Device *actions.Device

	client    *webdriver.Client
	closeOnce sync.Once
	closeErr  error
}

// OpenAndroid validates the server address and creates a session. A bad
// address is a config error; an unreachable server or a rejected session is
// core.ErrSessionCreate.
func OpenAndroid(ctx context.Context, appium config.AppiumConfig, android config.AndroidConfig) (*Android, error) {
	u, err := url.Parse(appium.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("malformed appium url %q", appium.URL))
	}

	client := webdriver.NewClient(appium.URL)
	client.SetTimeout(appium.RequestTimeout)

	logger.Info("creating android session on %s (device %s, app %s/%s)",
		appium.URL, android.DeviceName, android.AppPackage, android.AppActivity)
	if err := client.NewSession(ctx, AndroidCapabilities(android)); err != nil {
		return nil, core.ErrSessionCreate.
			WithMessage("could not create android session on " + appium.URL).
			WithCause(err)
	}
	logger.Info("android session %s created", client.SessionID())

	// Candidates are polled by the resolver; an implicit wait would multiply
	// every failed probe.
	if err := client.SetImplicitWait(ctx, 0); err != nil {
		logger.Warn("reset implicit wait: %v", err)
	}

	return &Android{
		Device: actions.NewDevice(client, android.Wait),
		client: client,
	}, nil
}

// Client returns the WebDriver client of the session.
func (a *Android) Client() *webdriver.Client {
	return a.client
}

// Screenshot captures the device screen as PNG.
func (a *Android) Screenshot(ctx context.Context) ([]byte, error) {
	return a.client.Screenshot(ctx)
}

// Hierarchy returns the UiAutomator2 view hierarchy.
func (a *Android) Hierarchy(ctx context.Context) (string, string, error) {
	src, err := a.client.Source(ctx)
	return src, core.ContentTypeXML, err
}

// Close deletes the session. Later calls return the first result.
func (a *Android) Close() error {
	a.closeOnce.Do(func() {
		id := a.client.SessionID()
		a.closeErr = a.client.Quit(context.Background())
		if a.closeErr != nil {
			logger.Warn("quit android session %s: %v", id, a.closeErr)
			return
		}
		logger.Info("android session %s closed", id)
	})
	return a.closeErr
}

// Web is a Chrome session.
type Web struct {
	*browser.Browser
	BaseURL string
}

// WebOptions converts the web config to browser options.
func WebOptions(cfg config.WebConfig) browser.Options {
	return browser.Options{
		Headless:     cfg.Headless,
		WindowWidth:  cfg.WindowWidth,
		WindowHeight: cfg.WindowHeight,
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout,
		ExecPath:     cfg.ChromePath,
	}
}

// OpenWeb starts Chrome on the base URL.
func OpenWeb(ctx context.Context, cfg config.WebConfig) (*Web, error) {
	b, err := browser.Open(ctx, WebOptions(cfg))
	if err != nil {
		return nil, err
	}
	return &Web{Browser: b, BaseURL: cfg.BaseURL}, nil
}
