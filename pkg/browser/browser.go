// Package browser drives a Chrome session over the DevTools protocol.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
)

// Options configures a browser session.
type Options struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int
	BaseURL      string
	Timeout      time.Duration // bounds a single browser command
	ExecPath     string        // empty uses the Chrome found on PATH
}

const (
	defaultWidth   = 1920
	defaultHeight  = 1080
	defaultTimeout = 15 * time.Second
	swipeSteps     = 10
)

func (o Options) withDefaults() Options {
	if o.WindowWidth <= 0 {
		o.WindowWidth = defaultWidth
	}
	if o.WindowHeight <= 0 {
		o.WindowHeight = defaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// Flags returns the Chrome command-line switches for opts. Headless uses the
// new headless mode with a fixed window; headed starts maximized.
func Flags(opts Options) map[string]interface{} {
	opts = opts.withDefaults()
	flags := map[string]interface{}{}
	if opts.Headless {
		flags["headless"] = "new"
		flags["disable-gpu"] = true
		flags["window-size"] = fmt.Sprintf("%d,%d", opts.WindowWidth, opts.WindowHeight)
	} else {
		flags["headless"] = false
		flags["start-maximized"] = true
	}
	return flags
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range Flags(opts) {
		out = append(out, chromedp.Flag(name, value))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	return out
}

// Browser is an open Chrome tab.
type Browser struct {
	opts        Options
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Open starts Chrome and navigates to opts.BaseURL when set. Any failure is
// reported as core.ErrSessionCreate and leaves no process behind.
func Open(ctx context.Context, opts Options) (*Browser, error) {
	opts = opts.withDefaults()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(opts)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Debug), chromedp.WithErrorf(logger.Warn))

	b := &Browser{opts: opts, ctx: tabCtx, cancel: cancel, allocCancel: allocCancel}

	// The first Run allocates the browser and ties its lifetime to the
	// context it is given, so it must be the tab context itself.
	if err := chromedp.Run(tabCtx); err != nil {
		b.Close()
		return nil, core.ErrSessionCreate.WithMessage("could not start chrome").WithCause(err)
	}
	logger.Info("chrome started (headless=%v)", opts.Headless)

	if opts.BaseURL != "" {
		if err := b.Navigate(ctx, opts.BaseURL); err != nil {
			b.Close()
			return nil, core.ErrSessionCreate.WithMessage("could not open " + opts.BaseURL).WithCause(err)
		}
	}
	return b, nil
}

// Close shuts the browser down. Only the first call has an effect.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = chromedp.Cancel(b.ctx)
		b.cancel()
		b.allocCancel()
		logger.Info("chrome closed")
	})
	return b.closeErr
}

// run executes actions on the tab, bounded by ctx and the command timeout.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.ctx, b.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the load event.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := b.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	logger.Debug("navigated to %s", url)
	return nil
}

// Title returns the document title.
func (b *Browser) Title(ctx context.Context) (string, error) {
	var title string
	if err := b.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// URL returns the address of the loaded document.
func (b *Browser) URL(ctx context.Context) (string, error) {
	var url string
	if err := b.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Hierarchy returns the serialized DOM of the page.
func (b *Browser) Hierarchy(ctx context.Context) (string, string, error) {
	var html string
	if err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", "", err
	}
	return html, core.ContentTypeHTML, nil
}

// Screenshot captures the viewport as PNG.
func (b *Browser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := b.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// WindowSize returns the current viewport size in CSS pixels.
func (b *Browser) WindowSize(ctx context.Context) (core.Size, error) {
	var dims []int
	if err := b.run(ctx, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims)); err != nil {
		return core.Size{}, err
	}
	if len(dims) != 2 {
		return core.Size{}, fmt.Errorf("unexpected viewport %v", dims)
	}
	return core.Size{Width: dims[0], Height: dims[1]}, nil
}

// Swipe synthesizes a touch press, a linear move and a release.
func (b *Browser) Swipe(ctx context.Context, start, end core.Point, duration time.Duration) error {
	step := duration / swipeSteps
	return b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchTouchEvent(input.TouchStart, touchAt(start)).Do(ctx); err != nil {
			return err
		}
		for i := 1; i <= swipeSteps; i++ {
			p := core.Point{
				X: start.X + (end.X-start.X)*i/swipeSteps,
				Y: start.Y + (end.Y-start.Y)*i/swipeSteps,
			}
			if err := chromedp.Sleep(step).Do(ctx); err != nil {
				return err
			}
			if err := input.DispatchTouchEvent(input.TouchMove, touchAt(p)).Do(ctx); err != nil {
				return err
			}
		}
		return input.DispatchTouchEvent(input.TouchEnd, []*input.TouchPoint{}).Do(ctx)
	}))
}

func touchAt(p core.Point) []*input.TouchPoint {
	return []*input.TouchPoint{{X: float64(p.X), Y: float64(p.Y)}}
}
