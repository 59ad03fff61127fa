package jsengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/uiprobe/pkg/actions"
	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/webdriver"
	"github.com/devicelab-dev/uiprobe/pkg/webdriver/webdrivertest"
)

func newBoundEngine(t *testing.T) (*Engine, *webdrivertest.Server) {
	t.Helper()
	srv := webdrivertest.NewServer()
	t.Cleanup(srv.Close)

	client := webdriver.NewClient(srv.URL)
	require.NoError(t, client.NewSession(context.Background(), map[string]interface{}{"platformName": "Android"}))

	engine := New()
	t.Cleanup(engine.Close)
	engine.BindDevice(actions.NewDevice(client, 20*time.Millisecond))
	return engine, srv
}

func TestDevice_ClickByIdFallback(t *testing.T) {
	engine, srv := newBoundEngine(t)
	id := srv.AddElement(core.ByID("idB"), webdrivertest.Visible(""))

	err := engine.Run(context.Background(), "click.js", `device.clickById("idA", "idB", "idC")`)

	require.NoError(t, err)
	assert.Equal(t, []string{id}, srv.Clicked())
}

func TestDevice_ClickByIdArray(t *testing.T) {
	engine, srv := newBoundEngine(t)
	id := srv.AddElement(core.ByID("idC"), webdrivertest.Visible(""))

	err := engine.Run(context.Background(), "click.js", `device.clickById(["idA", "idC"])`)

	require.NoError(t, err)
	assert.Equal(t, []string{id}, srv.Clicked())
}

func TestDevice_UncaughtNotFound(t *testing.T) {
	engine, _ := newBoundEngine(t)

	err := engine.Run(context.Background(), "missing.js", `device.clickById("idX", "idY")`)

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrElementNotFound), "got %v", err)
	assert.Contains(t, err.Error(), "idX")
	assert.Contains(t, err.Error(), "idY")
	assert.Equal(t, core.StatusFailed, core.Classify(err))
}

func TestDevice_CaughtNotFound(t *testing.T) {
	engine, _ := newBoundEngine(t)

	err := engine.Run(context.Background(), "caught.js", `
		try {
			device.clickByAccessibilityId("Nope");
			output.path = "clicked";
		} catch (e) {
			output.path = "caught";
		}
	`)

	require.NoError(t, err)
	assert.Equal(t, "caught", engine.GetOutput()["path"])
}

func TestDevice_WaitTypeAndRead(t *testing.T) {
	engine, srv := newBoundEngine(t)
	input := srv.AddElement(core.ByID("com.android.settings:id/search_src_text"), webdrivertest.Visible(""))
	srv.AddElement(core.ByID("android:id/title"), webdrivertest.Visible("About phone"))

	err := engine.Run(context.Background(), "type.js", `
		var box = device.waitForElementById("com.android.settings:id/search", "com.android.settings:id/search_src_text");
		assert(box !== null, "search box missing");
		device.typeText(box, "About phone");
		output.title = device.getText("id", "android:id/title");
		output.absent = device.waitForElementById("nothing") === null;
	`)

	require.NoError(t, err)
	assert.Equal(t, "About phone", srv.Typed(input))
	out := engine.GetOutput()
	assert.Equal(t, "About phone", out["title"])
	assert.Equal(t, true, out["absent"])
}

func TestDevice_ElementHandleMethods(t *testing.T) {
	engine, srv := newBoundEngine(t)
	id := srv.AddElement(core.ByAccessibilityID("Navigate up"), webdrivertest.Visible("Up"))

	err := engine.Run(context.Background(), "handle.js", `
		var el = device.waitForElementByAccessibilityId("Navigate up");
		output.text = el.text();
		output.displayed = el.isDisplayed();
		el.click();
	`)

	require.NoError(t, err)
	assert.Equal(t, "Up", engine.GetOutput()["text"])
	assert.Equal(t, true, engine.GetOutput()["displayed"])
	assert.Equal(t, []string{id}, srv.Clicked())
}

func TestDevice_AttributesAndTap(t *testing.T) {
	engine, srv := newBoundEngine(t)
	state := webdrivertest.Visible("Wi-Fi")
	state.Attributes = map[string]string{"checked": "true", "content-desc": "Wi-Fi toggle"}
	state.Rect = core.Bounds{X: 900, Y: 300, Width: 120, Height: 80}
	srv.AddElement(core.ByAccessibilityID("Wi-Fi toggle"), state)

	err := engine.Run(context.Background(), "toggle.js", `
		output.checked = device.getAttribute("aid", "Wi-Fi toggle", "checked");
		var toggle = device.waitForElementByAccessibilityId("Wi-Fi toggle");
		output.desc = toggle.attribute("content-desc");
		device.tap(toggle);
	`)

	require.NoError(t, err)
	out := engine.GetOutput()
	assert.Equal(t, "true", out["checked"])
	assert.Equal(t, "Wi-Fi toggle", out["desc"])
	require.Len(t, srv.Actions(), 1)
	assert.Empty(t, srv.Clicked())
}

func TestDevice_HandleUsesRunContext(t *testing.T) {
	engine, srv := newBoundEngine(t)
	srv.AddElement(core.ByAccessibilityID("Navigate up"), webdrivertest.Visible("Up"))
	srv.SetDelay("/text", time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := engine.Run(ctx, "slow.js", `device.waitForElementByAccessibilityId("Navigate up").text()`)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDevice_TypeTextWithoutElement(t *testing.T) {
	engine, _ := newBoundEngine(t)

	err := engine.Run(context.Background(), "type.js", `device.typeText(null, "x")`)
	assert.Error(t, err)
}

func TestDevice_KeysAndSwipes(t *testing.T) {
	engine, srv := newBoundEngine(t)
	srv.SetWindow(1000, 2000)

	err := engine.Run(context.Background(), "keys.js", `
		device.pressKey("enter");
		device.pressKey("KEYCODE_BACK");
		device.swipeDown();
		device.swipeUp();
	`)

	require.NoError(t, err)
	assert.Equal(t, []int{66, 4}, srv.KeyCodes())
	assert.Len(t, srv.Actions(), 2)
}

func TestDevice_UnknownKey(t *testing.T) {
	engine, srv := newBoundEngine(t)

	err := engine.Run(context.Background(), "keys.js", `device.pressKey("F13")`)

	assert.Error(t, err)
	assert.Empty(t, srv.KeyCodes())
}

func TestDevice_UiSelectors(t *testing.T) {
	engine, srv := newBoundEngine(t)
	layout := srv.AddElement(core.ByUiAutomator(actions.UiSelectorClassIndex("android.widget.LinearLayout", 2)), webdrivertest.Visible(""))
	info := srv.AddElement(core.ByUiAutomator(actions.UiSelectorText("Software information")), webdrivertest.Visible(""))
	srv.AddElement(core.ByUiAutomator(actions.UiScrollableToText("Build number")), webdrivertest.Visible("Build number"))

	err := engine.Run(context.Background(), "ui.js", `
		device.clickByUiSelector("android.widget.LinearLayout", 2);
		device.clickByUiAutomator(device.uiSelectorText("Software information"));
		output.build = device.scrollToText("Build number").text();
	`)

	require.NoError(t, err)
	assert.Equal(t, []string{layout, info}, srv.Clicked())
	assert.Equal(t, "Build number", engine.GetOutput()["build"])
}

func TestDevice_MissingArgument(t *testing.T) {
	engine, _ := newBoundEngine(t)

	err := engine.Run(context.Background(), "args.js", `device.clickByAccessibilityId()`)
	assert.ErrorContains(t, err, "clickByAccessibilityId")
}
