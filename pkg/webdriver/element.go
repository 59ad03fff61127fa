package webdriver

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/uiprobe/pkg/core"
)

// Element is a remote element reference bound to the session that found it.
type Element struct {
	ID     string
	client *Client
}

// NewElement wraps an element ID returned by the server.
func NewElement(c *Client, id string) *Element {
	return &Element{ID: id, client: c}
}

// Click clicks the element using the WebDriver standard endpoint.
func (e *Element) Click(ctx context.Context) error {
	_, err := e.client.post(ctx, e.client.elementPath(e.ID)+"/click", map[string]interface{}{})
	return err
}

// Clear clears the element's text.
func (e *Element) Clear(ctx context.Context) error {
	_, err := e.client.post(ctx, e.client.elementPath(e.ID)+"/clear", map[string]interface{}{})
	return err
}

// SendKeys types text into the element.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	_, err := e.client.post(ctx, e.client.elementPath(e.ID)+"/value", map[string]interface{}{
		"text":  text,
		"value": strings.Split(text, ""),
	})
	return err
}

// Text returns the element's visible text.
func (e *Element) Text(ctx context.Context) (string, error) {
	resp, err := e.client.get(ctx, e.client.elementPath(e.ID)+"/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// Attribute returns an element attribute value.
func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	resp, err := e.client.get(ctx, e.client.elementPath(e.ID)+"/attribute/"+name)
	if err != nil {
		return "", err
	}
	value, _ := resp["value"].(string)
	return value, nil
}

// IsDisplayed checks if element is visible.
func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	resp, err := e.client.get(ctx, e.client.elementPath(e.ID)+"/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// IsEnabled checks if element is enabled.
func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	resp, err := e.client.get(ctx, e.client.elementPath(e.ID)+"/enabled")
	if err != nil {
		return false, err
	}
	enabled, _ := resp["value"].(bool)
	return enabled, nil
}

// Rect returns the element's position and size.
func (e *Element) Rect(ctx context.Context) (core.Bounds, error) {
	resp, err := e.client.get(ctx, e.client.elementPath(e.ID)+"/rect")
	if err != nil {
		return core.Bounds{}, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return core.Bounds{}, fmt.Errorf("invalid rect response")
	}

	x, _ := value["x"].(float64)
	y, _ := value["y"].(float64)
	w, _ := value["width"].(float64)
	h, _ := value["height"].(float64)
	return core.Bounds{X: int(x), Y: int(y), Width: int(w), Height: int(h)}, nil
}

// String identifies the element in logs.
func (e *Element) String() string {
	return "element(" + e.ID + ")"
}
