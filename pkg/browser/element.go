package browser

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/devicelab-dev/uiprobe/pkg/core"
)

// Element is a DOM node found in the tab.
type Element struct {
	Node    *cdp.Node
	browser *Browser
}

// Find looks up by once. It does not wait for the node to appear.
func (b *Browser) Find(ctx context.Context, by core.By) (*Element, error) {
	sel, opt, err := selectorFor(by)
	if err != nil {
		return nil, err
	}

	var nodes []*cdp.Node
	if err := b.run(ctx, chromedp.Nodes(sel, &nodes, opt, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("find %s: %w", by, err)
	}
	if len(nodes) == 0 {
		return nil, core.ErrElementNotFound.WithMessage("element not found: " + by.String())
	}
	return &Element{Node: nodes[0], browser: b}, nil
}

// selectorFor maps a locator to a chromedp selector.
func selectorFor(by core.By) (string, chromedp.QueryOption, error) {
	switch by.Using {
	case core.StrategyCSS:
		return by.Value, chromedp.ByQuery, nil
	case core.StrategyXPath:
		return by.Value, chromedp.BySearch, nil
	case core.StrategyID:
		return "[id=" + strconv.Quote(by.Value) + "]", chromedp.ByQuery, nil
	case core.StrategyClassName:
		return "." + by.Value, chromedp.ByQuery, nil
	case core.StrategyAccessibilityID:
		return "[aria-label=" + strconv.Quote(by.Value) + "]", chromedp.ByQuery, nil
	}
	return "", nil, core.ErrInvalidConfig.WithMessage("locator strategy not supported in the browser: " + by.Using)
}

func (e *Element) ids() []cdp.NodeID {
	return []cdp.NodeID{e.Node.NodeID}
}

// Click clicks the centre of the node.
func (e *Element) Click(ctx context.Context) error {
	return e.browser.run(ctx, chromedp.Click(e.ids(), chromedp.ByNodeID))
}

// Clear empties an input or textarea.
func (e *Element) Clear(ctx context.Context) error {
	return e.browser.run(ctx, chromedp.Clear(e.ids(), chromedp.ByNodeID))
}

// SendKeys types text into the node.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	return e.browser.run(ctx, chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID))
}

// Text returns the visible text of the node.
func (e *Element) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.browser.run(ctx, chromedp.Text(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return text, nil
}

// IsDisplayed reports whether the node has a layout box.
func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	displayed := false
	err := e.browser.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := dom.GetBoxModel().WithNodeID(e.Node.NodeID).Do(ctx)
		displayed = err == nil
		return nil
	}))
	return displayed, err
}

// IsEnabled reports whether the node lacks a disabled attribute.
func (e *Element) IsEnabled(context.Context) (bool, error) {
	_, disabled := e.Node.Attribute("disabled")
	return !disabled, nil
}

func (e *Element) String() string {
	return fmt.Sprintf("%s#%d", e.Node.LocalName, e.Node.NodeID)
}
