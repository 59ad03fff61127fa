package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/uiprobe/pkg/config"
	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/webdriver/webdrivertest"
)

func TestAndroidCapabilities(t *testing.T) {
	cfg := config.Default().Android
	caps := AndroidCapabilities(cfg)

	assert.Equal(t, "Android", caps["platformName"])
	assert.Equal(t, "RZ8W90NJNKM", caps["appium:deviceName"])
	assert.Equal(t, "UiAutomator2", caps["appium:automationName"])
	assert.Equal(t, "com.android.settings", caps["appium:appPackage"])
	assert.Equal(t, ".Settings", caps["appium:appActivity"])
	assert.Equal(t, 60, caps["appium:newCommandTimeout"])
	assert.NotContains(t, caps, "appium:udid")

	cfg.UDID = "emulator-5554"
	cfg.AutomationName = ""
	caps = AndroidCapabilities(cfg)
	assert.Equal(t, "emulator-5554", caps["appium:udid"])
	assert.Equal(t, "UiAutomator2", caps["appium:automationName"])
}

func TestOpenAndroid(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()

	cfg := config.Default()
	cfg.Appium.URL = srv.URL

	s, err := OpenAndroid(context.Background(), cfg.Appium, cfg.Android)
	require.NoError(t, err)
	assert.Equal(t, srv.SessionID, s.Client().SessionID())
	assert.Equal(t, "com.android.settings", srv.Capabilities()["appium:appPackage"])
	assert.NotNil(t, s.Device)

	var timeouts int
	for _, r := range srv.Requests() {
		if r.Path == "/session/"+srv.SessionID+"/timeouts" {
			timeouts++
			assert.EqualValues(t, 0, r.Body["implicit"])
		}
	}
	assert.Equal(t, 1, timeouts, "implicit wait should be reset once")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, srv.Quits())
}

func TestAndroid_Captures(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()

	cfg := config.Default()
	cfg.Appium.URL = srv.URL

	s, err := OpenAndroid(context.Background(), cfg.Appium, cfg.Android)
	require.NoError(t, err)
	defer s.Close()

	png, err := s.Screenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, webdrivertest.Screenshot, png)

	tree, contentType, err := s.Hierarchy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, webdrivertest.Source, tree)
	assert.Equal(t, core.ContentTypeXML, contentType)
}

func TestAndroid_CapturesStopAtDeadline(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()
	srv.SetDelay("/screenshot", 3*time.Second)
	srv.SetDelay("/source", 3*time.Second)

	cfg := config.Default()
	cfg.Appium.URL = srv.URL

	s, err := OpenAndroid(context.Background(), cfg.Appium, cfg.Android)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = s.Screenshot(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, _, err = s.Hierarchy(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOpenAndroid_MalformedURL(t *testing.T) {
	for _, u := range []string{"", "127.0.0.1:4723", "tcp://host:4723", "http://"} {
		cfg := config.Default()
		cfg.Appium.URL = u

		_, err := OpenAndroid(context.Background(), cfg.Appium, cfg.Android)
		assert.True(t, errors.Is(err, core.ErrInvalidConfig), "url %q: %v", u, err)
	}
}

func TestOpenAndroid_Unreachable(t *testing.T) {
	srv := webdrivertest.NewServer()
	url := srv.URL
	srv.Close()

	cfg := config.Default()
	cfg.Appium.URL = url
	cfg.Appium.RequestTimeout = time.Second

	_, err := OpenAndroid(context.Background(), cfg.Appium, cfg.Android)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSessionCreate))
	assert.True(t, errors.Is(err, core.ErrServerUnreachable))
	assert.Equal(t, core.StatusErrored, core.Classify(err))
}

func TestOpenAndroid_Rejected(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()
	srv.FailSessionCreate("device RZ8W90NJNKM not found")

	cfg := config.Default()
	cfg.Appium.URL = srv.URL

	_, err := OpenAndroid(context.Background(), cfg.Appium, cfg.Android)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSessionCreate))
	assert.Contains(t, err.Error(), "RZ8W90NJNKM")
}

func TestWebOptions(t *testing.T) {
	cfg := config.Default().Web
	cfg.Headless = true

	opts := WebOptions(cfg)
	assert.True(t, opts.Headless)
	assert.Equal(t, "https://smartbuy-me.com/", opts.BaseURL)
	assert.Equal(t, 15*time.Second, opts.Timeout)
	assert.Equal(t, 1920, opts.WindowWidth)
}
