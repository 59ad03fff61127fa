package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
)

// GenerateJUnit reads report.json from reportDir and writes junit-report.xml.
func GenerateJUnit(reportDir string) error {
	index, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	xml := buildJUnitXML(index)

	outputPath := filepath.Join(reportDir, "junit-report.xml")
	if err := os.WriteFile(outputPath, []byte(xml), 0o644); err != nil {
		return fmt.Errorf("write junit xml: %w", err)
	}

	return nil
}

// buildJUnitXML renders one <testsuite> per group.
func buildJUnitXML(index *Index) string {
	var totalTime float64
	if index.EndTime != nil {
		totalTime = index.EndTime.Sub(index.StartTime).Seconds()
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(fmt.Sprintf(
		`<testsuites name="uiprobe" tests="%d" failures="%d" errors="%d" skipped="%d" time="%.3f">`+"\n",
		index.Summary.Total,
		index.Summary.Failed,
		index.Summary.Errored,
		index.Summary.Skipped,
		totalTime,
	))

	for _, g := range index.Groups {
		b.WriteString(buildTestSuite(&g, index))
	}

	b.WriteString("</testsuites>\n")
	return b.String()
}

func buildTestSuite(g *GroupEntry, index *Index) string {
	s := ComputeSummary([]GroupEntry{*g})

	var b strings.Builder
	b.WriteString(fmt.Sprintf(
		`  <testsuite name="%s" tests="%d" failures="%d" errors="%d" skipped="%d" time="%.3f" timestamp="%s">`+"\n",
		xmlEscape(g.Name),
		s.Total,
		s.Failed,
		s.Errored,
		s.Skipped,
		float64(g.Duration)/1000.0,
		g.StartTime.Format(time.RFC3339),
	))

	b.WriteString("    <properties>\n")
	writeProperty(&b, "run.id", index.RunID)
	writeProperty(&b, "device.name", index.Target.DeviceName)
	writeProperty(&b, "device.udid", index.Target.UDID)
	writeProperty(&b, "app", index.Target.App)
	writeProperty(&b, "web.baseUrl", index.Target.BaseURL)
	b.WriteString("    </properties>\n")

	for _, c := range g.Cases {
		b.WriteString(buildTestCase(g.Name, &c))
	}

	if g.SetupError != "" || g.TeardownError != "" {
		b.WriteString("    <system-err>")
		if g.SetupError != "" {
			b.WriteString(xmlEscape("setup: " + g.SetupError + "\n"))
		}
		if g.TeardownError != "" {
			b.WriteString(xmlEscape("teardown: " + g.TeardownError + "\n"))
		}
		b.WriteString("</system-err>\n")
	}

	b.WriteString("  </testsuite>\n")
	return b.String()
}

func buildTestCase(group string, c *CaseEntry) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(
		`    <testcase name="%s" classname="%s" time="%.3f">`+"\n",
		xmlEscape(c.Name), xmlEscape(group), float64(c.Duration)/1000.0,
	))

	switch c.Status {
	case core.StatusFailed:
		b.WriteString(fmt.Sprintf(
			`      <failure message="%s" type="%s">%s</failure>`+"\n",
			xmlEscape(firstLine(c.Error)),
			xmlEscape(failureType(c.Category)),
			xmlEscape(c.Error),
		))
	case core.StatusErrored:
		b.WriteString(fmt.Sprintf(
			`      <error message="%s" type="%s">%s</error>`+"\n",
			xmlEscape(firstLine(c.Error)),
			xmlEscape(failureType(c.Category)),
			xmlEscape(c.Error),
		))
	case core.StatusSkipped:
		if c.Error != "" {
			b.WriteString(fmt.Sprintf(`      <skipped message="%s"/>`+"\n", xmlEscape(c.Error)))
		} else {
			b.WriteString("      <skipped/>\n")
		}
	}

	// Jenkins' attachments plugin picks these lines up.
	if len(c.Attachments) > 0 {
		b.WriteString("      <system-out>")
		for _, a := range c.Attachments {
			b.WriteString("[[ATTACHMENT|" + xmlEscape(a.Path) + "]]\n")
		}
		b.WriteString("</system-out>\n")
	}

	b.WriteString("    </testcase>\n")
	return b.String()
}

func writeProperty(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(fmt.Sprintf(`      <property name="%s" value="%s"/>`+"\n", name, xmlEscape(value)))
}

// failureType maps an error category to a JUnit failure type.
func failureType(category string) string {
	switch category {
	case "assertion":
		return "AssertionError"
	case "timeout":
		return "TimeoutError"
	case "connection":
		return "SessionError"
	case "config":
		return "ConfigError"
	default:
		return "TestError"
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// xmlEscape escapes special XML characters in a string.
func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
