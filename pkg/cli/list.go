package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiprobe/pkg/scenario"
)

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List available scenarios and their cases",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		registry, err := scenario.NewRegistry(cfg)
		if err != nil {
			return err
		}

		for _, g := range registry.All() {
			fmt.Fprintf(c.App.Writer, "%s%s%s\n", color(colorBold), g.GroupName(), color(colorReset))
			cases := g.CaseNames()
			if len(cases) == 0 {
				fmt.Fprintf(c.App.Writer, "  %s(no cases)%s\n", color(colorGray), color(colorReset))
				continue
			}
			fmt.Fprintf(c.App.Writer, "  %s\n", strings.Join(cases, "\n  "))
		}
		return nil
	},
}
