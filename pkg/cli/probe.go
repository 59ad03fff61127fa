package cli

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/locate"
	"github.com/devicelab-dev/uiprobe/pkg/session"
)

var probeCommand = &cli.Command{
	Name:      "probe",
	Usage:     "Try fallback locators on the connected device",
	ArgsUsage: "<candidate>...",
	Description: `Open an Appium session and resolve the candidates in order, printing
every attempt and which candidate won. Useful when adding a vendor id.

Examples:
  uiprobe probe --strategy aid "Search settings"
  uiprobe probe --condition clickable com.android.settings:id/search_src_text com.samsung.android.settings.search:id/search_src_text`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "strategy",
			Usage: "Locator strategy (id, aid, uiautomator, xpath, class)",
			Value: "id",
		},
		&cli.StringFlag{
			Name:  "condition",
			Usage: "Condition each candidate must reach (present, visible, clickable)",
			Value: "visible",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Wait per candidate (default: android.wait from config)",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "Poll interval within a candidate's wait",
			Value: locate.DefaultInterval,
		},
	},
	Action: probe,
}

func probe(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one candidate is required")
	}

	cond, err := locate.ParseCondition(c.String("condition"))
	if err != nil {
		return err
	}
	candidates := make([]core.By, 0, c.NArg())
	for _, v := range c.Args().Slice() {
		by, err := core.ParseBy(c.String("strategy"), v)
		if err != nil {
			return err
		}
		candidates = append(candidates, by)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	s, err := session.OpenAndroid(c.Context, cfg.Appium, cfg.Android)
	if err != nil {
		return err
	}
	defer s.Close()

	resolver := s.Device.Resolver().WithInterval(c.Duration("interval"))
	if c.IsSet("timeout") {
		resolver = resolver.WithTimeout(c.Duration("timeout"))
	}
	w := c.App.Writer
	fmt.Fprintf(w, "resolving %d candidate(s), %s each\n", len(candidates), resolver.Timeout())

	start := time.Now()
	outcome := resolver.Resolve(c.Context, cond, candidates...)

	for i, a := range outcome.Attempts {
		if a.Err == nil {
			fmt.Fprintf(w, "  %d. %s✓%s %s\n", i+1, color(colorGreen), color(colorReset), a.By)
			continue
		}
		fmt.Fprintf(w, "  %d. %s✗%s %s\n", i+1, color(colorRed), color(colorReset), a.By)
		fmt.Fprintf(w, "       %s╰─%s %v\n", color(colorGray), color(colorReset), a.Err)
	}
	for i := len(outcome.Attempts); i < len(candidates); i++ {
		fmt.Fprintf(w, "  %d. %s-%s %s (not tried)\n", i+1, color(colorGray), color(colorReset), candidates[i])
	}

	elapsed := formatDuration(time.Since(start).Milliseconds())
	if !outcome.Found {
		fmt.Fprintf(w, "\n%sno %s element%s after %s\n", color(colorRed), cond, color(colorReset), elapsed)
		return cli.Exit("", 1)
	}
	fmt.Fprintf(w, "\n%sresolved%s %s (%s) after %s\n", color(colorGreen), color(colorReset), outcome.By, outcome.Element, elapsed)
	return nil
}
