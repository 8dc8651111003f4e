package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/competitor-monitor/backend/compare"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "monitor_test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedOnePair(t *testing.T, s *Store) (mine, competitor *Page) {
	t.Helper()
	ctx := context.Background()
	err := s.SeedPages(ctx, []PagePair{{
		Slug:          "arsenal",
		MyURL:         "https://mine.example/arsenal-tickets",
		CompetitorURL: "https://competitor.example/arsenal-tickets",
	}})
	if err != nil {
		t.Fatalf("SeedPages: %v", err)
	}

	mine, err = s.PageByURL(ctx, "https://mine.example/arsenal-tickets")
	if err != nil || mine == nil {
		t.Fatalf("PageByURL mine: %v %v", mine, err)
	}
	competitor, err = s.PageByURL(ctx, "https://competitor.example/arsenal-tickets")
	if err != nil || competitor == nil {
		t.Fatalf("PageByURL competitor: %v %v", competitor, err)
	}
	return mine, competitor
}

func TestSeedPages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mine, competitor := seedOnePair(t, s)

	if mine.Site != SiteMine || competitor.Site != SiteCompetitor {
		t.Errorf("sites = %q / %q", mine.Site, competitor.Site)
	}
	if mine.Slug != "arsenal" || competitor.Slug != "arsenal" {
		t.Errorf("slugs = %q / %q", mine.Slug, competitor.Slug)
	}

	// Seeding again must upsert, not duplicate.
	if err := s.SeedPages(ctx, []PagePair{{
		Slug:          "arsenal-fc",
		MyURL:         "https://mine.example/arsenal-tickets",
		CompetitorURL: "https://competitor.example/arsenal-tickets",
	}}); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	pages, err := s.AllPages(ctx)
	if err != nil {
		t.Fatalf("AllPages: %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("pages = %d, want 2 after upsert", len(pages))
	}
	for _, p := range pages {
		if p.Slug != "arsenal-fc" {
			t.Errorf("slug = %q, want updated arsenal-fc", p.Slug)
		}
	}
}

func TestPageByURLMissing(t *testing.T) {
	s := openTestStore(t)
	p, err := s.PageByURL(context.Background(), "https://nowhere.example/")
	if err != nil {
		t.Fatalf("PageByURL: %v", err)
	}
	if p != nil {
		t.Errorf("got %+v, want nil for untracked url", p)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mine, _ := seedOnePair(t, s)

	snap := &Snapshot{
		PageID:          mine.ID,
		RawHTML:         "<html><body>Hello</body></html>",
		CleanText:       "Ticket prices start at £45.",
		WordCount:       5,
		Title:           "Arsenal Tickets",
		H1:              "Arsenal Tickets",
		MetaDescription: "Buy Arsenal tickets.",
		Headings: []compare.Heading{
			{Level: "h1", Text: "Arsenal Tickets"},
			{Level: "h2", Text: "Ticket Prices"},
		},
		InternalLinks: []string{"https://mine.example/chelsea-tickets"},
	}
	id, err := s.SaveSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if id == 0 {
		t.Fatal("snapshot id is zero")
	}

	got, err := s.SnapshotByID(ctx, id)
	if err != nil {
		t.Fatalf("SnapshotByID: %v", err)
	}
	if got == nil {
		t.Fatal("snapshot not found")
	}
	if got.CleanText != snap.CleanText || got.WordCount != snap.WordCount {
		t.Errorf("text round trip: %+v", got)
	}
	if len(got.Headings) != 2 || got.Headings[1].Text != "Ticket Prices" {
		t.Errorf("headings round trip: %+v", got.Headings)
	}
	if len(got.InternalLinks) != 1 {
		t.Errorf("links round trip: %+v", got.InternalLinks)
	}
	if got.ScrapedAt == "" {
		t.Error("scraped_at not populated by the database")
	}

	sig := got.Signals(mine.URL)
	if sig.URL != mine.URL || sig.WordCount != 5 {
		t.Errorf("signals = %+v", sig)
	}
}

func TestLatestSnapshotsOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mine, _ := seedOnePair(t, s)

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := s.SaveSnapshot(ctx, &Snapshot{
			PageID:    mine.ID,
			CleanText: "version",
			WordCount: i,
		})
		if err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	snaps, err := s.LatestSnapshots(ctx, mine.ID, 2)
	if err != nil {
		t.Fatalf("LatestSnapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}
	// Newest first, id breaks same-second timestamp ties.
	if snaps[0].ID != ids[2] || snaps[1].ID != ids[1] {
		t.Errorf("order = [%d %d], want [%d %d]", snaps[0].ID, snaps[1].ID, ids[2], ids[1])
	}
}

func TestDiffRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mine, _ := seedOnePair(t, s)

	oldID, _ := s.SaveSnapshot(ctx, &Snapshot{PageID: mine.ID, CleanText: "old"})
	newID, _ := s.SaveSnapshot(ctx, &Snapshot{PageID: mine.ID, CleanText: "new"})

	if d, err := s.LatestDiff(ctx, mine.ID); err != nil || d != nil {
		t.Fatalf("LatestDiff before save = %+v, %v", d, err)
	}

	id, err := s.SaveDiff(ctx, &Diff{
		PageID:        mine.ID,
		SnapshotOldID: oldID,
		SnapshotNewID: newID,
		ChangePct:     12.5,
		AddedText:     "New hospitality section.",
		AISummary:     "They added hospitality content.",
	})
	if err != nil {
		t.Fatalf("SaveDiff: %v", err)
	}

	got, err := s.LatestDiff(ctx, mine.ID)
	if err != nil {
		t.Fatalf("LatestDiff: %v", err)
	}
	if got == nil || got.ID != id {
		t.Fatalf("got %+v, want diff %d", got, id)
	}
	if got.ChangePct != 12.5 || got.SnapshotNewID != newID {
		t.Errorf("diff round trip: %+v", got)
	}
	if got.DetectedAt == "" {
		t.Error("detected_at not populated by the database")
	}
}

func TestLoadPairs(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		pairs, err := LoadPairs([]byte(`[
			{"slug": "arsenal", "my_url": "https://a.example/x", "competitor_url": "https://b.example/x"}
		]`))
		if err != nil {
			t.Fatalf("LoadPairs: %v", err)
		}
		if len(pairs) != 1 || pairs[0].Slug != "arsenal" {
			t.Errorf("pairs = %+v", pairs)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		if _, err := LoadPairs([]byte(`[{"slug": "arsenal", "my_url": "https://a.example/x"}]`)); err == nil {
			t.Error("expected error for missing competitor_url")
		}
	})

	t.Run("bad slug", func(t *testing.T) {
		if _, err := LoadPairs([]byte(`[{"slug": "bad slug", "my_url": "https://a.example/x", "competitor_url": "https://b.example/x"}]`)); err == nil {
			t.Error("expected error for whitespace in slug")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := LoadPairs([]byte(`{`)); err == nil {
			t.Error("expected parse error")
		}
	})
}
