// Package monitor orchestrates the scrape → diff → compare pipeline over
// the configured page pairs.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/competitor-monitor/backend/compare"
	"github.com/competitor-monitor/backend/extractor"
	"github.com/competitor-monitor/backend/fetch"
	"github.com/competitor-monitor/backend/judge"
	"github.com/competitor-monitor/backend/notify"
	"github.com/competitor-monitor/backend/stats"
	"github.com/competitor-monitor/backend/store"
	"github.com/competitor-monitor/backend/textdiff"
)

// Service wires the storage, fetching, diffing, judging and alerting
// pieces into one runnable pipeline. Claude may be nil when no API key is
// configured; the pipeline then runs with the judged dimensions degraded.
type Service struct {
	Store   *store.Store
	Fetcher *fetch.Fetcher
	Claude  *judge.Claude
	Slack   *notify.Slack
	Stats   *stats.Storage

	// ThresholdPct is the change percentage above which a diff is
	// persisted and alerted.
	ThresholdPct float64
}

// Judge returns the judge interface value, avoiding a typed-nil
// interface when no Claude client is configured.
func (s *Service) Judge() judge.Judge {
	if s.Claude == nil {
		return nil
	}
	return s.Claude
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID       string                      `json:"run_id"`
	StartedAt   string                      `json:"started_at"`
	DurationSec float64                     `json:"duration_sec"`
	Scraped     int                         `json:"scraped"`
	ScrapeFails int                         `json:"scrape_failures"`
	Diffs       int                         `json:"diffs_computed"`
	Significant int                         `json:"significant_changes"`
	Comparisons []*compare.ComparisonReport `json:"comparisons"`
}

// RunPipeline executes a full scrape, diff and compare cycle.
func (s *Service) RunPipeline(ctx context.Context) (*RunReport, error) {
	runID := uuid.NewString()
	started := time.Now().UTC()
	log.Info("pipeline run starting", "run_id", runID)

	report := &RunReport{
		RunID:     runID,
		StartedAt: started.Format(time.RFC3339),
	}

	scraped, failed, err := s.ScrapeAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape phase: %w", err)
	}
	report.Scraped = scraped
	report.ScrapeFails = failed

	diffs, significant, err := s.DiffAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("diff phase: %w", err)
	}
	report.Diffs = diffs
	report.Significant = significant

	comparisons, err := s.CompareAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("compare phase: %w", err)
	}
	report.Comparisons = comparisons

	if s.Stats != nil {
		s.Stats.Cleanup()
	}

	report.DurationSec = time.Since(started).Seconds()
	log.Info("pipeline run finished",
		"run_id", runID,
		"scraped", report.Scraped,
		"diffs", report.Diffs,
		"significant", report.Significant,
		"comparisons", len(report.Comparisons),
		"duration_sec", fmt.Sprintf("%.1f", report.DurationSec))
	return report, nil
}

// ScrapeAll fetches every monitored page, extracts its signals and stores
// a snapshot. Individual page failures are logged and skipped so one
// blocked page never sinks the run. Returns (stored, failed) counts.
func (s *Service) ScrapeAll(ctx context.Context) (int, int, error) {
	pages, err := s.Store.AllPages(ctx)
	if err != nil {
		return 0, 0, err
	}

	stored, failed := 0, 0
	for _, page := range pages {
		if ctx.Err() != nil {
			return stored, failed, ctx.Err()
		}

		html, err := s.Fetcher.Fetch(ctx, page.URL)
		if err != nil {
			log.Error("fetch failed", "url", page.URL, "error", err)
			failed++
			continue
		}

		ex, err := extractor.Extract(html, page.URL)
		if err != nil {
			log.Error("extract failed", "url", page.URL, "error", err)
			failed++
			continue
		}

		snap := &store.Snapshot{
			PageID:          page.ID,
			RawHTML:         html,
			CleanText:       ex.CleanText,
			WordCount:       ex.WordCount,
			Title:           ex.Title,
			H1:              ex.H1,
			MetaDescription: ex.MetaDescription,
			Headings:        ex.Headings,
			InternalLinks:   ex.InternalLinks,
		}
		if _, err := s.Store.SaveSnapshot(ctx, snap); err != nil {
			log.Error("snapshot save failed", "url", page.URL, "error", err)
			failed++
			continue
		}

		log.Info("snapshot stored",
			"slug", page.Slug, "site", page.Site, "words", ex.WordCount)
		snapshotsTotal.Inc()
		stored++
	}

	if s.Stats != nil && stored > 0 {
		s.Stats.IncrementStats(stored, 0, 0, 0, 0)
	}
	return stored, failed, nil
}

// DiffAll compares the two most recent snapshots of every page. Changes at
// or above ThresholdPct are persisted with an AI summary and alerted to
// Slack. Returns (diffs computed, significant changes).
func (s *Service) DiffAll(ctx context.Context) (int, int, error) {
	pages, err := s.Store.AllPages(ctx)
	if err != nil {
		return 0, 0, err
	}

	computed, significant := 0, 0
	for _, page := range pages {
		if ctx.Err() != nil {
			return computed, significant, ctx.Err()
		}

		snaps, err := s.Store.LatestSnapshots(ctx, page.ID, 2)
		if err != nil {
			log.Error("snapshot load failed", "url", page.URL, "error", err)
			continue
		}
		if len(snaps) < 2 {
			continue
		}
		newSnap, oldSnap := snaps[0], snaps[1]

		// Skip pairs already recorded by an earlier run.
		if last, err := s.Store.LatestDiff(ctx, page.ID); err == nil &&
			last != nil && last.SnapshotNewID == newSnap.ID {
			continue
		}

		res := textdiff.Compute(oldSnap.CleanText, newSnap.CleanText)
		computed++
		log.Debug("diff computed",
			"slug", page.Slug, "site", page.Site, "change_pct", res.ChangePct)

		if !textdiff.IsSignificant(res.ChangePct, s.ThresholdPct) {
			continue
		}
		significant++
		significantChangesTotal.Inc()

		summary := ""
		if s.Claude != nil {
			summary = s.Claude.SummarizeDiff(ctx, judge.DiffSummaryRequest{
				PageURL:     page.URL,
				Slug:        page.Slug,
				OldText:     oldSnap.CleanText,
				NewText:     newSnap.CleanText,
				AddedText:   res.AddedText,
				RemovedText: res.RemovedText,
				ChangePct:   res.ChangePct,
			})
		}

		diff := &store.Diff{
			PageID:        page.ID,
			SnapshotOldID: oldSnap.ID,
			SnapshotNewID: newSnap.ID,
			ChangePct:     res.ChangePct,
			AddedText:     res.AddedText,
			RemovedText:   res.RemovedText,
			AISummary:     summary,
		}
		if _, err := s.Store.SaveDiff(ctx, diff); err != nil {
			log.Error("diff save failed", "url", page.URL, "error", err)
			continue
		}

		log.Warn("significant change detected",
			"slug", page.Slug, "site", page.Site,
			"change_pct", res.ChangePct, "url", page.URL)

		if s.Slack != nil {
			s.Slack.SendChangeAlert(notify.ChangeAlert{
				PageURL:      page.URL,
				Slug:         page.Slug,
				Site:         page.Site,
				ChangePct:    res.ChangePct,
				OldWordCount: oldSnap.WordCount,
				NewWordCount: newSnap.WordCount,
				AISummary:    summary,
			})
		}
	}

	if s.Stats != nil && computed > 0 {
		s.Stats.IncrementStats(0, computed, significant, 0, 0)
	}
	return computed, significant, nil
}

// CompareAll scores every configured topic pair from its latest snapshots
// and posts a Slack summary of the results.
func (s *Service) CompareAll(ctx context.Context) ([]*compare.ComparisonReport, error) {
	pages, err := s.Store.AllPages(ctx)
	if err != nil {
		return nil, err
	}

	// Group pages by slug, one mine and one competitor per topic.
	type pair struct {
		mine, competitor *store.Page
	}
	pairs := make(map[string]*pair)
	order := make([]string, 0, len(pages)/2)
	for i := range pages {
		p := &pages[i]
		entry, ok := pairs[p.Slug]
		if !ok {
			entry = &pair{}
			pairs[p.Slug] = entry
			order = append(order, p.Slug)
		}
		if p.Site == store.SiteMine {
			entry.mine = p
		} else {
			entry.competitor = p
		}
	}

	var (
		reports    []*compare.ComparisonReport
		wordCounts = make(map[string][2]int)
	)
	for _, slug := range order {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		entry := pairs[slug]
		if entry.mine == nil || entry.competitor == nil {
			log.Warn("incomplete pair, skipping comparison", "slug", slug)
			continue
		}

		mySnap, err := s.latestSnapshot(ctx, entry.mine.ID)
		if err != nil || mySnap == nil {
			log.Warn("no snapshot for comparison", "slug", slug, "site", store.SiteMine)
			continue
		}
		compSnap, err := s.latestSnapshot(ctx, entry.competitor.ID)
		if err != nil || compSnap == nil {
			log.Warn("no snapshot for comparison", "slug", slug, "site", store.SiteCompetitor)
			continue
		}

		report := s.scorePair(ctx, slug,
			mySnap.Signals(entry.mine.URL),
			compSnap.Signals(entry.competitor.URL))
		reports = append(reports, report)
		wordCounts[slug] = [2]int{mySnap.WordCount, compSnap.WordCount}

		log.Info("comparison scored",
			"slug", slug,
			"mine", report.MyWeightedScore,
			"competitor", report.CompetitorWeightedScore)
	}

	if s.Slack != nil && len(reports) > 0 {
		s.Slack.SendComparisonSummary(reports, wordCounts)
	}
	return reports, nil
}

// CompareSlug runs a single on-demand comparison for one topic from the
// latest stored snapshots.
func (s *Service) CompareSlug(ctx context.Context, slug string) (*compare.ComparisonReport, error) {
	pages, err := s.Store.AllPages(ctx)
	if err != nil {
		return nil, err
	}

	var mine, competitor *store.Page
	for i := range pages {
		if pages[i].Slug != slug {
			continue
		}
		if pages[i].Site == store.SiteMine {
			mine = &pages[i]
		} else {
			competitor = &pages[i]
		}
	}
	if mine == nil || competitor == nil {
		return nil, fmt.Errorf("no configured pair for slug %q", slug)
	}

	mySnap, err := s.latestSnapshot(ctx, mine.ID)
	if err != nil {
		return nil, err
	}
	compSnap, err := s.latestSnapshot(ctx, competitor.ID)
	if err != nil {
		return nil, err
	}
	if mySnap == nil || compSnap == nil {
		return nil, fmt.Errorf("no snapshots yet for slug %q, run the pipeline first", slug)
	}

	return s.scorePair(ctx, slug,
		mySnap.Signals(mine.URL), compSnap.Signals(competitor.URL)), nil
}

// scorePair runs one comparison and records its counters and timing.
func (s *Service) scorePair(ctx context.Context, slug string, mine, competitor compare.PageSignals) *compare.ComparisonReport {
	timer := prometheus.NewTimer(comparisonDuration)
	report := compare.ComparePages(ctx, s.Judge(), slug, mine, competitor)
	timer.ObserveDuration()
	comparisonsTotal.Inc()

	if s.Claude != nil {
		failures := 0
		if compare.JudgeUnavailable(report) {
			failures = 1
			judgeFailuresTotal.Inc()
		}
		if s.Stats != nil {
			s.Stats.IncrementStats(0, 0, 0, 1, failures)
		}
	}
	return report
}

func (s *Service) latestSnapshot(ctx context.Context, pageID int64) (*store.Snapshot, error) {
	snaps, err := s.Store.LatestSnapshots(ctx, pageID, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return snaps[0], nil
}

// RunDaily blocks, running the pipeline every day at the given UTC hour,
// until ctx is cancelled.
func (s *Service) RunDaily(ctx context.Context, hour int) {
	for {
		next := nextRun(time.Now().UTC(), hour)
		wait := time.Until(next)
		log.Info("scheduler sleeping", "next_run", next.Format(time.RFC3339))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.RunPipeline(ctx); err != nil {
			log.Error("scheduled pipeline run failed", "error", err)
		}
	}
}

// nextRun returns the next occurrence of hour:00 UTC strictly after now.
func nextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
