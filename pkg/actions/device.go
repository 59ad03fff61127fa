// Package actions provides the Android interaction helpers used by test
// scenarios: clicks with fallback locators, typing, key presses, swipes and
// waits.
package actions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/gesture"
	"github.com/devicelab-dev/uiprobe/pkg/locate"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
	"github.com/devicelab-dev/uiprobe/pkg/webdriver"
)

// DefaultWait is how long each locator may take to reach its condition.
const DefaultWait = 5 * time.Second

// TapHold is how long a coordinate tap keeps the finger down.
const TapHold = 50 * time.Millisecond

// Device wraps an Appium session with waiting helpers.
type Device struct {
	client   *webdriver.Client
	resolver *locate.Resolver[*webdriver.Element]
}

// NewDevice creates helpers over client. A non-positive wait uses DefaultWait.
func NewDevice(client *webdriver.Client, wait time.Duration) *Device {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Device{
		client:   client,
		resolver: locate.NewResolver[*webdriver.Element](client, wait),
	}
}

// Resolver returns the fallback resolver used by the helpers.
func (d *Device) Resolver() *locate.Resolver[*webdriver.Element] {
	return d.resolver
}

// ===================== Click actions =====================

// ClickByUiAutomator waits for the UiSelector expression to become clickable
// and clicks it.
func (d *Device) ClickByUiAutomator(ctx context.Context, selector string) error {
	el, err := d.resolver.Require(ctx, locate.Clickable, core.ByUiAutomator(selector))
	if err != nil {
		logger.Error("failed to click element using UiAutomator: %s", selector)
		return fmt.Errorf("click uiautomator %s: %w", selector, err)
	}
	return d.click(ctx, el, core.ByUiAutomator(selector).String())
}

// ClickByAccessibilityID waits for the content-desc to become clickable and clicks it.
func (d *Device) ClickByAccessibilityID(ctx context.Context, id string) error {
	by := core.ByAccessibilityID(id)
	el, err := d.resolver.Require(ctx, locate.Clickable, by)
	if err != nil {
		return fmt.Errorf("click accessibility id %q: %w", id, err)
	}
	return d.click(ctx, el, by.String())
}

// ClickByID clicks the first resource id that becomes clickable. Each id
// gets the full wait. The error lists every id when none works.
func (d *Device) ClickByID(ctx context.Context, ids ...string) error {
	el, err := d.resolver.Require(ctx, locate.Clickable, byIDs(ids)...)
	if err != nil {
		logger.Error("none of the ids were clickable: %v", ids)
		return err
	}
	return d.click(ctx, el, fmt.Sprintf("%s among %v", el, ids))
}

// ClickByUiSelector clicks the index-th child of className without waiting.
func (d *Device) ClickByUiSelector(ctx context.Context, className string, index int) error {
	by := core.ByUiAutomator(UiSelectorClassIndex(className, index))
	el, err := d.client.Find(ctx, by)
	if err != nil {
		return fmt.Errorf("click %s: %w", by, err)
	}
	return d.click(ctx, el, by.String())
}

func (d *Device) click(ctx context.Context, el *webdriver.Element, what string) error {
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("click %s: %w", what, err)
	}
	logger.Debug("clicked %s", what)
	return nil
}

// Tap touches the centre of el's bounds. Unlike a click it goes through the
// input pipeline, so it reaches views that ignore accessibility clicks.
func (d *Device) Tap(ctx context.Context, el *webdriver.Element) error {
	if el == nil {
		return core.ErrElementNotFound.WithMessage("cannot tap a missing element")
	}
	bounds, err := el.Rect(ctx)
	if err != nil {
		return fmt.Errorf("bounds of %s: %w", el, err)
	}
	center := bounds.Center()
	if err := d.client.Tap(ctx, center, TapHold); err != nil {
		return fmt.Errorf("tap %s at (%d,%d): %w", el, center.X, center.Y, err)
	}
	logger.Debug("tapped %s at (%d,%d)", el, center.X, center.Y)
	return nil
}

// ===================== Type actions =====================

// TypeText clears the field and types text into it.
func (d *Device) TypeText(ctx context.Context, el *webdriver.Element, text string) error {
	if el == nil {
		return core.ErrElementNotFound.WithMessage("cannot type into a missing element")
	}
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", el, err)
	}
	if err := el.SendKeys(ctx, text); err != nil {
		return fmt.Errorf("type into %s: %w", el, err)
	}
	logger.Debug("typed %q into %s", text, el)
	return nil
}

// PressKey presses an Android hardware key.
func (d *Device) PressKey(ctx context.Context, key AndroidKey) error {
	if err := d.client.PressKeyCode(ctx, int(key)); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	logger.Debug("pressed %s", key)
	return nil
}

// ===================== Swipe / scroll actions =====================

// SwipeDown swipes from 75% to 25% of the screen height.
func (d *Device) SwipeDown(ctx context.Context) error {
	return gesture.Swipe(ctx, d.client, gesture.Down, gesture.DefaultDuration)
}

// SwipeUp swipes from 25% to 75% of the screen height.
func (d *Device) SwipeUp(ctx context.Context) error {
	return gesture.Swipe(ctx, d.client, gesture.Up, gesture.DefaultDuration)
}

// ScrollToText scrolls the first scrollable container until text is visible.
func (d *Device) ScrollToText(ctx context.Context, text string) (*webdriver.Element, error) {
	by := core.ByUiAutomator(UiScrollableToText(text))
	el, err := d.client.Find(ctx, by)
	if err != nil {
		return nil, fmt.Errorf("scroll to %q: %w", text, err)
	}
	return el, nil
}

// ===================== Wait actions =====================

// WaitForElementByID returns the first resource id that becomes visible.
// It reports false rather than an error when none does.
func (d *Device) WaitForElementByID(ctx context.Context, ids ...string) (*webdriver.Element, bool) {
	el, ok := d.resolver.Optional(ctx, locate.Visible, byIDs(ids)...)
	if !ok {
		logger.Warn("none of the ids are visible: %v", ids)
	}
	return el, ok
}

// WaitForElementByAccessibilityID waits for the content-desc to become visible.
func (d *Device) WaitForElementByAccessibilityID(ctx context.Context, id string) (*webdriver.Element, error) {
	return d.resolver.Require(ctx, locate.Visible, core.ByAccessibilityID(id))
}

// ===================== Verification actions =====================

// ElementText waits for by to become visible and returns its text.
func (d *Device) ElementText(ctx context.Context, by core.By) (string, error) {
	el, err := d.resolver.Require(ctx, locate.Visible, by)
	if err != nil {
		logger.Error("element not visible to read text: %s", by)
		return "", err
	}
	return el.Text(ctx)
}

// ElementAttribute waits for by to be present and returns the named
// attribute. Absent attributes read as "".
func (d *Device) ElementAttribute(ctx context.Context, by core.By, name string) (string, error) {
	el, err := d.resolver.Require(ctx, locate.Present, by)
	if err != nil {
		return "", err
	}
	value, err := el.Attribute(ctx, name)
	if err != nil {
		return "", fmt.Errorf("attribute %q of %s: %w", name, by, err)
	}
	return value, nil
}

// UiSelectorText selects by exact visible text.
func UiSelectorText(text string) string {
	return "new UiSelector().text(" + strconv.Quote(text) + ")"
}

// UiSelectorClassIndex selects the index-th element of className.
func UiSelectorClassIndex(className string, index int) string {
	return fmt.Sprintf("new UiSelector().className(%s).index(%d)", strconv.Quote(className), index)
}

// UiScrollableToText scrolls the first scrollable container to text.
func UiScrollableToText(text string) string {
	return "new UiScrollable(new UiSelector().scrollable(true))" +
		".scrollIntoView(" + UiSelectorText(text) + ");"
}

func byIDs(ids []string) []core.By {
	out := make([]core.By, len(ids))
	for i, id := range ids {
		out[i] = core.ByID(id)
	}
	return out
}
