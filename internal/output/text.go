// Package output writes human-readable reports of a build.
package output

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	cerrors "cloudeng.io/errors"
	"github.com/ramkansal/routeguessr/pkg/plugin"
)

// TextWriter writes a build report to a plain text file, mirroring the
// terminal output (without ANSI color codes).
type TextWriter struct {
	path  string
	lines []string
	mu    sync.Mutex
}

// NewTextWriter creates a new plain-text report writer.
func NewTextWriter(path string) *TextWriter {
	return &TextWriter{path: path}
}

// WriteEvent records one crawl event. Events that say nothing about a
// single area or route are ignored.
func (w *TextWriter) WriteEvent(e plugin.CrawlEvent) {
	var line string
	switch e.Type {
	case plugin.EventAreaVisited:
		line = fmt.Sprintf("  [area]    %s", e.URL)
	case plugin.EventLeafReached:
		line = fmt.Sprintf("  [leaf]    %s (%s)", e.URL, e.Message)
	case plugin.EventRoutePersisted:
		line = fmt.Sprintf("      +-- stored  %s", e.URL)
	case plugin.EventRouteSkipped:
		line = fmt.Sprintf("      +-- skipped %s (no images)", e.URL)
	case plugin.EventRouteFailed:
		line = fmt.Sprintf("      +-- failed  %s: %v", e.URL, e.Error)
	case plugin.EventPageError:
		line = fmt.Sprintf("  [error]   %s", e.Message)
	default:
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, line)
}

// Finalize writes the recorded lines followed by the build summary.
func (w *TextWriter) Finalize(summary *plugin.BuildSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder

	b.WriteString("\n  ROUTEGUESSR build report\n")
	b.WriteString("  " + strings.Repeat("-", 58) + "\n\n")

	b.WriteString(fmt.Sprintf("  Root:    %s\n", summary.RootURL))
	if summary.AreaName != "" {
		b.WriteString(fmt.Sprintf("  Area:    %s (id %d)\n", summary.AreaName, summary.AreaID))
	}
	b.WriteString(fmt.Sprintf("  Started: %s\n\n", summary.StartedAt.Format(time.RFC1123)))

	for _, line := range w.lines {
		b.WriteString(line + "\n")
	}

	b.WriteString("\n  " + strings.Repeat("-", 50) + "\n")
	b.WriteString("  Build complete\n")
	b.WriteString(fmt.Sprintf("    Areas:  %d visited, %d leaves\n", summary.AreasVisited, summary.LeavesVisited))
	b.WriteString(fmt.Sprintf("    Routes: %d stored, %d skipped, %d failed\n",
		summary.RoutesPersisted, summary.RoutesSkipped, summary.RoutesFailed))
	b.WriteString(fmt.Sprintf("    Images: %d stored in %s\n", summary.ImagesPersisted, FmtDur(summary.Duration)))

	if errs := flatten(summary.Err); len(errs) > 0 {
		b.WriteString(fmt.Sprintf("    Errors: %d\n", len(errs)))
		for _, err := range errs {
			b.WriteString("      - " + err.Error() + "\n")
		}
	}
	b.WriteString("\n")

	return os.WriteFile(w.path, []byte(b.String()), 0644)
}

// ---------- helpers ----------

func flatten(err error) []error {
	if err == nil {
		return nil
	}
	var m *cerrors.M
	if errors.As(err, &m) {
		return m.Unwrap()
	}
	return []error{err}
}

// FmtDur renders a duration compactly: 850ms, 4.2s, 3m12s.
func FmtDur(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
