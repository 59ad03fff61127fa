package core

import (
	"fmt"
	"strings"
)

// W3C locator strategies understood by Appium and chromedriver.
const (
	StrategyID              = "id"
	StrategyAccessibilityID = "accessibility id"
	StrategyUiAutomator     = "-android uiautomator"
	StrategyXPath           = "xpath"
	StrategyClassName       = "class name"
	StrategyCSS             = "css selector"
)

// By addresses an element with a single locator strategy.
type By struct {
	Using string `json:"using"`
	Value string `json:"value"`
}

// String renders the locator as used in failure messages.
func (b By) String() string {
	return fmt.Sprintf("%s=%s", b.Using, b.Value)
}

// ByID locates by resource id (Android) or DOM id (web).
func ByID(id string) By { return By{Using: StrategyID, Value: id} }

// ByAccessibilityID locates by content-desc / accessibility label.
func ByAccessibilityID(id string) By { return By{Using: StrategyAccessibilityID, Value: id} }

// ByUiAutomator locates with a UiSelector / UiScrollable expression.
func ByUiAutomator(expr string) By { return By{Using: StrategyUiAutomator, Value: expr} }

// ByXPath locates with an XPath expression.
func ByXPath(expr string) By { return By{Using: StrategyXPath, Value: expr} }

// ByClassName locates by widget class (Android) or CSS class (web).
func ByClassName(name string) By { return By{Using: StrategyClassName, Value: name} }

// ByCSS locates with a CSS selector (web only).
func ByCSS(selector string) By { return By{Using: StrategyCSS, Value: selector} }

// Size is a viewport or element size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point is a viewport coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// ParseBy builds a locator from a strategy name as typed by users. Besides
// the W3C names it accepts the short forms id, aid, uiautomator, xpath,
// class and css.
func ParseBy(strategy, value string) (By, error) {
	if value == "" {
		return By{}, ErrMissingRequired.WithMessage("locator value is empty")
	}
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyID, "resource-id":
		return ByID(value), nil
	case StrategyAccessibilityID, "accessibility-id", "accessibilityid", "aid", "content-desc":
		return ByAccessibilityID(value), nil
	case StrategyUiAutomator, "uiautomator", "android uiautomator":
		return ByUiAutomator(value), nil
	case StrategyXPath:
		return ByXPath(value), nil
	case StrategyClassName, "class", "classname":
		return ByClassName(value), nil
	case StrategyCSS, "css":
		return ByCSS(value), nil
	default:
		return By{}, ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown locator strategy %q", strategy))
	}
}
