package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/locate"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
	"github.com/devicelab-dev/uiprobe/pkg/suite"
)

// Page is the browser surface the web groups need.
type Page[E locate.Element] interface {
	locate.Finder[E]
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Close() error
}

// HeaderCandidates locate the site header, most specific first.
var HeaderCandidates = []core.By{
	core.ByCSS("header#header"),
	core.ByCSS("header.site-header"),
	core.ByCSS("header"),
	core.ByXPath("//*[@role='banner']"),
}

// SearchBoxCandidates locate the storefront search box. Not every layout has
// one.
var SearchBoxCandidates = []core.By{
	core.ByCSS("input[type='search']"),
	core.ByCSS("input[name='q']"),
	core.ByID("search"),
}

// WebHome checks the storefront home page.
func WebHome[E locate.Element](baseURL string, wait time.Duration, open func(ctx context.Context) (Page[E], error)) *suite.Group[Page[E]] {
	resolve := func(p Page[E]) *locate.Resolver[E] {
		return locate.NewResolver[E](p, wait)
	}

	return &suite.Group[Page[E]]{
		Name:        "web-home",
		Description: "Storefront home page renders with a header",
		Open:        open,
		Cases: []suite.Case[Page[E]]{
			{
				Name: "title is not empty",
				Body: func(ctx context.Context, p Page[E]) error {
					if err := p.Navigate(ctx, baseURL); err != nil {
						return fmt.Errorf("navigate to %s: %w", baseURL, err)
					}
					loaded, err := p.URL(ctx)
					if err != nil {
						return err
					}
					if loaded == "" || loaded == "about:blank" {
						return fmt.Errorf("navigate to %s: no document loaded", baseURL)
					}
					title, err := p.Title(ctx)
					if err != nil {
						return err
					}
					if strings.TrimSpace(title) == "" {
						return core.ErrAssertionFailed.WithMessage("page title of " + baseURL + " is empty")
					}
					logger.Info("home page %s title: %q", loaded, title)
					return nil
				},
			},
			{
				Name: "header is visible",
				Body: func(ctx context.Context, p Page[E]) error {
					_, err := resolve(p).Require(ctx, locate.Visible, HeaderCandidates...)
					return err
				},
			},
			{
				Name: "search box if present",
				Body: func(ctx context.Context, p Page[E]) error {
					if _, ok := resolve(p).Optional(ctx, locate.Present, SearchBoxCandidates...); ok {
						logger.Info("search box found")
					} else {
						logger.Info("no search box on this layout")
					}
					return nil
				},
			},
		},
	}
}
