package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"go-stats-cache/internal/metrics"
	"go-stats-cache/internal/models"
	"go-stats-cache/internal/refresh"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	blue   = color.New(color.FgBlue)
	red    = color.New(color.FgRed)
)

// maxPreview bounds the payload excerpt of a status line
const maxPreview = 72

// Console prints dashboard status lines
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console writing to out
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Entry prints the state of one watched data set
func (c *Console) Entry(name string, e models.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case e.Speculative:
		blue.Fprintf(c.out, "[%s] %s (pending) %s\n", e.Category, name, preview(e.Value))
	case e.Degraded():
		yellow.Fprintf(c.out, "[%s] %s (showing cached data: %v) %s\n", e.Category, name, e.Err, preview(e.Value))
	case e.Err != nil:
		red.Fprintf(c.out, "[%s] %s unavailable: %v\n", e.Category, name, e.Err)
	case e.State == models.EntryStateStale:
		yellow.Fprintf(c.out, "[%s] %s (stale, fetched %s) %s\n", e.Category, name, e.FetchedAt.Format(time.Kitchen), preview(e.Value))
	case e.State == models.EntryStateFresh:
		green.Fprintf(c.out, "[%s] %s %s\n", e.Category, name, preview(e.Value))
	default:
		fmt.Fprintf(c.out, "[%s] %s %s\n", e.Category, name, e.State)
	}
}

// Network prints the connectivity banner
func (c *Console) Network(state models.NetworkState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !state.Online {
		red.Fprintf(c.out, "You are offline. Showing cached data.\n")
		return
	}
	if state.LastOutageDuration != nil {
		green.Fprintf(c.out, "Back online after %s.\n", state.LastOutageDuration.Round(time.Millisecond))
		return
	}
	green.Fprintf(c.out, "Online.\n")
}

// Refresh prints pull-to-refresh transitions
func (c *Console) Refresh(state refresh.State, progress float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch state {
	case refresh.StateTriggered:
		yellow.Fprintf(c.out, "Release to refresh (%.0f%%)\n", progress*100)
	case refresh.StateRefreshing:
		blue.Fprintf(c.out, "Refreshing...\n")
	}
}

// Warning prints a warning message
func (c *Console) Warning(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	yellow.Fprintf(c.out, "  ⚠ %s\n", text)
}

// Summary prints the hit rate of every category and the global totals
func (c *Console) Summary(collector *metrics.Collector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat("=", 60)
	green.Fprintf(c.out, "\n%s\n", line)

	categories := append([]models.Category(nil), models.Categories...)
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	for _, category := range categories {
		snap, ok := collector.Snapshot(category)
		if !ok {
			continue
		}
		fmt.Fprintf(c.out, "%-12s hit rate %6.2f%%  hits %d  misses %d  invalidations %d  size %dB\n",
			category, collector.HitRate(category), snap.Hits, snap.Misses, snap.Invalidations, snap.SizeBytes)
	}

	global := collector.Global()
	green.Fprintf(c.out, "%-12s hit rate %6.2f%%  avg latency %s  size %dB\n",
		"total", collector.GlobalHitRate(), global.AverageLatency.Round(time.Microsecond), global.TotalSize)
	green.Fprintf(c.out, "%s\n", line)
}

// preview compacts JSON payloads, folds whitespace of anything else and cuts
// the result to maxPreview runes
func preview(value []byte) string {
	var s string
	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err == nil {
		s = compact.String()
	} else {
		s = strings.Join(strings.Fields(string(value)), " ")
	}

	runes := []rune(s)
	if len(runes) > maxPreview {
		return string(runes[:maxPreview-3]) + "..."
	}
	return s
}
