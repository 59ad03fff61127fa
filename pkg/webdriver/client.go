// Package webdriver is a minimal W3C WebDriver client for Appium and
// chromedriver sessions.
package webdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// DefaultTimeout bounds a single HTTP round-trip to the automation server.
const DefaultTimeout = 2 * time.Minute

// Client handles HTTP communication with a WebDriver server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
}

// NewClient creates a new WebDriver client. No session is created until
// NewSession is called.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// SetTimeout changes the per-request HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.client.Timeout = timeout
	}
}

// NewSession creates a new session with the given capabilities.
func (c *Client) NewSession(ctx context.Context, capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	resp, err := c.requestContext(ctx, http.MethodPost, "/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid session response")
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}

	return nil
}

// Quit deletes the session. Calling Quit without a session is a no-op.
func (c *Client) Quit(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(ctx, c.sessionPath())
	c.sessionID = ""
	return err
}

// SessionID returns the current session ID, empty when not connected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Element Operations

// Find performs a single element lookup bounded by ctx. It never waits for
// the element to appear; callers poll.
func (c *Client) Find(ctx context.Context, by core.By) (*Element, error) {
	body := map[string]interface{}{
		"using": by.Using,
		"value": by.Value,
	}

	resp, err := c.post(ctx, c.sessionPath()+"/element", body)
	if err != nil {
		return nil, err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return nil, core.ErrElementNotFound.WithMessage(fmt.Sprintf("element not found: %s", by))
	}

	id := extractElementID(elemValue)
	if id == "" {
		return nil, core.ErrElementNotFound.WithMessage(fmt.Sprintf("element not found: %s", by))
	}
	return NewElement(c, id), nil
}

// Window

// WindowSize returns the current viewport dimensions. It is read from the
// server on every call so rotations are picked up.
func (c *Client) WindowSize(ctx context.Context) (core.Size, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/window/rect")
	if err != nil {
		return core.Size{}, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return core.Size{}, fmt.Errorf("invalid window rect response")
	}
	w, _ := value["width"].(float64)
	h, _ := value["height"].(float64)
	return core.Size{Width: int(w), Height: int(h)}, nil
}

// Input

// PerformActions sends raw W3C input sources to the server.
func (c *Client) PerformActions(ctx context.Context, sequences ...ActionSequence) error {
	_, err := c.post(ctx, c.sessionPath()+"/actions", map[string]interface{}{"actions": sequences})
	return err
}

// Swipe performs a single press-move-release touch gesture.
func (c *Client) Swipe(ctx context.Context, start, end core.Point, duration time.Duration) error {
	return c.PerformActions(ctx, TouchSequence("finger",
		PointerMove(start, 0),
		PointerDown(0),
		PointerMove(end, duration),
		PointerUp(0),
	))
}

// Tap presses and releases at p, holding for hold.
func (c *Client) Tap(ctx context.Context, p core.Point, hold time.Duration) error {
	return c.PerformActions(ctx, TouchSequence("finger",
		PointerMove(p, 0),
		PointerDown(0),
		Pause(hold),
		PointerUp(0),
	))
}

// PressKeyCode presses a key by Android keycode.
func (c *Client) PressKeyCode(ctx context.Context, keycode int) error {
	_, err := c.post(ctx, c.sessionPath()+"/appium/device/press_keycode", map[string]interface{}{
		"keycode": keycode,
	})
	return err
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source XML.
func (c *Client) Source(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// Timeouts

// SetImplicitWait sets the implicit wait timeout. The fallback locator polls
// on its own, so sessions normally keep this at zero.
func (c *Client) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	_, err := c.post(ctx, c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.requestContext(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.requestContext(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.requestContext(ctx, http.MethodDelete, path, nil)
}

func (c *Client) requestContext(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.ErrServerUnreachable.WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			msg, _ := errValue["message"].(string)
			return result, classify(&Error{Status: resp.StatusCode, Code: errType, Message: msg})
		}
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
