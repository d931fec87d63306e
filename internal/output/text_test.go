package output

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	cerrors "cloudeng.io/errors"
	"github.com/ramkansal/routeguessr/pkg/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	w := NewTextWriter(path)

	w.WriteEvent(plugin.CrawlEvent{Type: plugin.EventAreaVisited, URL: "https://site.test/area/1"})
	w.WriteEvent(plugin.CrawlEvent{Type: plugin.EventRoutePersisted, URL: "https://site.test/route/1"})
	w.WriteEvent(plugin.CrawlEvent{Type: plugin.EventRouteSkipped, URL: "https://site.test/route/2"})
	w.WriteEvent(plugin.CrawlEvent{Type: plugin.EventRouteFailed, URL: "https://site.test/route/3", Error: errors.New("no grade")})
	w.WriteEvent(plugin.CrawlEvent{Type: plugin.EventCrawlStarted, URL: "ignored"})

	var m cerrors.M
	m.Append(errors.New("route 3: no grade"), errors.New("photo 9: 404"))
	err := w.Finalize(&plugin.BuildSummary{
		RootURL:         "https://site.test/area/1",
		AreaName:        "Yosemite",
		AreaID:          7,
		StartedAt:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:        90 * time.Second,
		AreasVisited:    1,
		LeavesVisited:   1,
		RoutesPersisted: 1,
		RoutesSkipped:   1,
		RoutesFailed:    1,
		ImagesPersisted: 2,
		Err:             m.Err(),
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	report := string(raw)

	assert.Contains(t, report, "Area:    Yosemite (id 7)")
	assert.Contains(t, report, "stored  https://site.test/route/1")
	assert.Contains(t, report, "skipped https://site.test/route/2 (no images)")
	assert.Contains(t, report, "failed  https://site.test/route/3: no grade")
	assert.Contains(t, report, "Routes: 1 stored, 1 skipped, 1 failed")
	assert.Contains(t, report, "Images: 2 stored in 1m30s")
	assert.Contains(t, report, "Errors: 2")
	assert.Contains(t, report, "- photo 9: 404")
	assert.NotContains(t, report, "ignored")
}

func TestFmtDur(t *testing.T) {
	assert.Equal(t, "850ms", FmtDur(850*time.Millisecond))
	assert.Equal(t, "4.2s", FmtDur(4200*time.Millisecond))
	assert.Equal(t, "3m12s", FmtDur(192*time.Second))
}
