package suite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
)

// Screenshotter is implemented by sessions that can capture the screen.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// HierarchyDumper is implemented by sessions that can dump their UI tree.
// The content type tells how the dump is stored.
type HierarchyDumper interface {
	Hierarchy(ctx context.Context) (dump string, contentType string, err error)
}

// captureTimeout bounds artifact capture so a dead session cannot hold up
// the rest of the group.
const captureTimeout = 10 * time.Second

// captureArtifacts saves whatever sess can capture under
// <outputDir>/artifacts/<group>/. Failures are logged and skipped.
func captureArtifacts(ctx context.Context, sess any, outputDir, group, name string) (out []core.Attachment) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("artifacts for %s/%s: panic: %v", group, name, r)
		}
	}()

	shot, canShoot := sess.(Screenshotter)
	dump, canDump := sess.(HierarchyDumper)
	if !canShoot && !canDump {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	dir := filepath.Join("artifacts", safeName(group))
	if err := os.MkdirAll(filepath.Join(outputDir, dir), 0o755); err != nil {
		logger.Warn("artifacts for %s/%s: %v", group, name, err)
		return nil
	}

	save := func(kind, ext, contentType string, data []byte) {
		rel := filepath.Join(dir, safeName(name)+ext)
		if err := os.WriteFile(filepath.Join(outputDir, rel), data, 0o644); err != nil {
			logger.Warn("save %s for %s/%s: %v", kind, group, name, err)
			return
		}
		out = append(out, core.Attachment{Name: kind, ContentType: contentType, Path: filepath.ToSlash(rel)})
	}

	if canShoot {
		if data, err := shot.Screenshot(ctx); err != nil {
			logger.Warn("screenshot for %s/%s: %v", group, name, err)
		} else if len(data) > 0 {
			save(core.AttachmentScreenshot, ".png", core.ContentTypePNG, data)
		}
	}
	if canDump {
		if tree, contentType, err := dump.Hierarchy(ctx); err != nil {
			logger.Warn("hierarchy for %s/%s: %v", group, name, err)
		} else if tree != "" {
			ext := ".xml"
			if contentType == core.ContentTypeHTML {
				ext = ".html"
			}
			save(core.AttachmentHierarchy, ext, contentType, []byte(tree))
		}
	}
	return out
}

// safeName turns a group or case name into a file name.
func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		return "unnamed"
	}
	return s
}
