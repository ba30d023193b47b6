package telemetry

import (
	"testing"
)

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_Impact(t *testing.T) {
	bd := NewBookmarkDetector(10)

	// Free fall: energy climbs
	for i, ke := range []float64{1, 4, 9, 16} {
		bookmarks := bd.Check(WindowStats{WindowEndTick: int64(i * 100), KineticEnergy: ke, MeanHeight: 2})
		if hasBookmark(bookmarks, BookmarkImpact) {
			t.Fatalf("unexpected impact at window %d", i)
		}
	}

	// Splash: energy drops below half of the peak
	bookmarks := bd.Check(WindowStats{WindowEndTick: 400, KineticEnergy: 5, MeanHeight: 0.5})
	if !hasBookmark(bookmarks, BookmarkImpact) {
		t.Error("expected impact bookmark")
	}

	// Reported once
	bookmarks = bd.Check(WindowStats{WindowEndTick: 500, KineticEnergy: 1, MeanHeight: 0.5})
	if hasBookmark(bookmarks, BookmarkImpact) {
		t.Error("impact should only be reported once")
	}
}

func TestBookmarkDetector_Settled(t *testing.T) {
	bd := NewBookmarkDetector(10)

	bd.Check(WindowStats{WindowEndTick: 100, KineticEnergy: 100, MeanHeight: 2})

	found := false
	for i := 2; i < 10; i++ {
		bookmarks := bd.Check(WindowStats{
			WindowEndTick: int64(i * 100),
			KineticEnergy: 0.5,
			MeanHeight:    0.4,
		})
		if hasBookmark(bookmarks, BookmarkSettled) {
			if found {
				t.Fatal("settled should only be reported once")
			}
			found = true
		}
	}
	if !found {
		t.Error("expected settled bookmark")
	}
}

func TestBookmarkDetector_NotSettledWhileMoving(t *testing.T) {
	bd := NewBookmarkDetector(10)

	bd.Check(WindowStats{WindowEndTick: 100, KineticEnergy: 100, MeanHeight: 2})
	for i := 2; i < 10; i++ {
		bookmarks := bd.Check(WindowStats{
			WindowEndTick: int64(i * 100),
			KineticEnergy: 0.5,
			MeanHeight:    2 - float64(i)*0.1, // still draining
		})
		if hasBookmark(bookmarks, BookmarkSettled) {
			t.Fatalf("unexpected settled bookmark at window %d", i)
		}
	}
}

func TestBookmarkDetector_Instability(t *testing.T) {
	bd := NewBookmarkDetector(5)

	if bookmarks := bd.Check(WindowStats{WindowEndTick: 1}); len(bookmarks) != 0 {
		t.Errorf("expected no bookmarks, got %v", bookmarks)
	}

	bookmarks := bd.Check(WindowStats{RunID: "r", WindowEndTick: 2, Degenerate: 3})
	if !hasBookmark(bookmarks, BookmarkInstability) {
		t.Fatal("expected instability bookmark")
	}
	if bookmarks[0].RunID != "r" || bookmarks[0].Tick != 2 {
		t.Errorf("unexpected bookmark fields: %+v", bookmarks[0])
	}

	if !hasBookmark(bd.Check(WindowStats{WindowEndTick: 3, Escaped: 1}), BookmarkInstability) {
		t.Error("escaped particles should trigger instability")
	}
}
