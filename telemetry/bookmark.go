package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkImpact      BookmarkType = "impact"      // kinetic energy fell sharply from its peak
	BookmarkSettled     BookmarkType = "settled"     // kinetic energy and height flat over several windows
	BookmarkInstability BookmarkType = "instability" // non-finite results reset or particles escaped the box
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	RunID       string       `csv:"run_id"`
	Type        BookmarkType `csv:"type"`
	Tick        int64        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"run_id", b.RunID,
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	peakEnergy         float64 // highest kinetic energy seen so far
	impactReported     bool
	settledWindowCount int // consecutive windows with flat energy and height
	settledReported    bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for settle detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkInstability(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if bd.historyFull || bd.historyIdx > 0 {
		// Impact: energy dropped below half of its peak
		if b := bd.checkImpact(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Settled: energy and mean height stable over 4+ windows
		if b := bd.checkSettled(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	// Update history
	bd.addToHistory(stats)

	if stats.KineticEnergy > bd.peakEnergy {
		bd.peakEnergy = stats.KineticEnergy
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// recent returns up to n of the most recent windows, oldest first.
func (bd *BookmarkDetector) recent(n int) []WindowStats {
	size := bd.historyIdx
	if bd.historyFull {
		size = bd.historySize
	}
	n = min(n, size)
	out := make([]WindowStats, 0, n)
	for i := n; i > 0; i-- {
		idx := (bd.historyIdx - i + bd.historySize) % bd.historySize
		out = append(out, bd.history[idx])
	}
	return out
}

func (bd *BookmarkDetector) checkInstability(stats WindowStats) *Bookmark {
	if stats.Degenerate == 0 && stats.Escaped == 0 {
		return nil
	}
	return &Bookmark{
		RunID:       stats.RunID,
		Type:        BookmarkInstability,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d stage resets, %d particles outside the box", stats.Degenerate, stats.Escaped),
	}
}

func (bd *BookmarkDetector) checkImpact(stats WindowStats) *Bookmark {
	if bd.impactReported || bd.peakEnergy == 0 {
		return nil
	}

	if stats.KineticEnergy < bd.peakEnergy*0.5 {
		bd.impactReported = true
		return &Bookmark{
			RunID:       stats.RunID,
			Type:        BookmarkImpact,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Kinetic energy %.3f fell to %.0f%% of peak %.3f", stats.KineticEnergy, stats.KineticEnergy/bd.peakEnergy*100, bd.peakEnergy),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkSettled(stats WindowStats) *Bookmark {
	if bd.settledReported || bd.peakEnergy == 0 {
		return nil
	}

	history := bd.recent(3)
	if len(history) < 3 {
		return nil
	}
	window := append(history, stats)

	// Flat: energy stays below 5% of peak and mean height moves less than
	// 1% of its value across the last 4 windows.
	minH, maxH := window[0].MeanHeight, window[0].MeanHeight
	calm := true
	for _, h := range window {
		if h.KineticEnergy > bd.peakEnergy*0.05 {
			calm = false
		}
		minH = min(minH, h.MeanHeight)
		maxH = max(maxH, h.MeanHeight)
	}
	if calm && maxH-minH <= 0.01*max(maxH, 1e-3) {
		bd.settledWindowCount++
	} else {
		bd.settledWindowCount = 0
	}

	if bd.settledWindowCount >= 2 {
		bd.settledReported = true
		return &Bookmark{
			RunID:       stats.RunID,
			Type:        BookmarkSettled,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Settled at mean height %.3f with kinetic energy %.4f", stats.MeanHeight, stats.KineticEnergy),
		}
	}

	return nil
}
