package storage

import (
	"testing"
	"time"

	"github.com/rewired-gh/sentinel/internal/models"
)

func mustStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleNews(ticker, url string, age time.Duration) models.NewsItem {
	return models.NewsItem{
		Ticker:          ticker,
		Timestamp:       time.Now().UTC().Add(-age),
		Title:           "Sample headline",
		Summary:         "Sample summary",
		URL:             url,
		Source:          "finnhub",
		SourceType:      models.SourceTypeNews,
		Sentiment:       models.SentimentNeutral,
		KeywordsMatched: []string{"amat", "earnings"},
	}
}

func TestSaveNews_DeduplicatesByURL(t *testing.T) {
	s := mustStorage(t)

	items := []models.NewsItem{
		sampleNews("AMAT", "https://example.com/a", time.Hour),
		sampleNews("AMAT", "https://example.com/b", 2*time.Hour),
	}
	n, err := s.SaveNews(items)
	if err != nil {
		t.Fatalf("SaveNews failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 inserted, got %d", n)
	}

	// Second save of the same URLs inserts nothing
	n, err = s.SaveNews(items)
	if err != nil {
		t.Fatalf("SaveNews failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 inserted on duplicate save, got %d", n)
	}

	recent, err := s.RecentNews("AMAT", 24*time.Hour)
	if err != nil {
		t.Fatalf("RecentNews failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(recent))
	}
	// Newest first
	if recent[0].URL != "https://example.com/a" {
		t.Errorf("Expected newest row first, got %s", recent[0].URL)
	}
	if len(recent[0].KeywordsMatched) != 2 {
		t.Errorf("Keywords not round-tripped: %v", recent[0].KeywordsMatched)
	}
}

func TestSaveNews_SkipsEmptyURL(t *testing.T) {
	s := mustStorage(t)

	item := sampleNews("AMAT", "", time.Hour)
	n, err := s.SaveNews([]models.NewsItem{item})
	if err != nil {
		t.Fatalf("SaveNews failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 inserted for empty URL, got %d", n)
	}
}

func TestRecentNews_WindowAndTickerFilter(t *testing.T) {
	s := mustStorage(t)

	items := []models.NewsItem{
		sampleNews("AMAT", "https://example.com/fresh", time.Hour),
		sampleNews("AMAT", "https://example.com/stale", 48*time.Hour),
		sampleNews("TSM", "https://example.com/other", time.Hour),
	}
	if _, err := s.SaveNews(items); err != nil {
		t.Fatalf("SaveNews failed: %v", err)
	}

	recent, err := s.RecentNews("AMAT", 24*time.Hour)
	if err != nil {
		t.Fatalf("RecentNews failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(recent))
	}
	if recent[0].URL != "https://example.com/fresh" {
		t.Errorf("Unexpected row: %s", recent[0].URL)
	}
}

func TestPSIHistoryAndLatest(t *testing.T) {
	s := mustStorage(t)

	base := time.Now().UTC().Add(-3 * time.Hour)
	scores := []struct {
		psi   float64
		level models.Level
		at    time.Time
	}{
		{2.5, models.LevelNormal, base},
		{5.8, models.LevelAlert, base.Add(time.Hour)},
		{7.4, models.LevelCritical, base.Add(2 * time.Hour)},
	}
	for _, sc := range scores {
		r := models.PSIResult{
			PSITotal: sc.psi, Level: sc.level,
			OptionsScore: 1, AttentionScore: 2, FactScore: 3, PriceBoost: 0.5,
		}
		if err := s.SavePSI("AMAT", r, sc.at); err != nil {
			t.Fatalf("SavePSI failed: %v", err)
		}
	}

	hist, err := s.PSIHistory("AMAT", base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("PSIHistory failed: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("Expected 2 records in window, got %d", len(hist))
	}
	if hist[0].PSI != 5.8 || hist[1].PSI != 7.4 {
		t.Errorf("Unexpected history order: %+v", hist)
	}

	latest, ok, err := s.LatestPSI("AMAT")
	if err != nil {
		t.Fatalf("LatestPSI failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected a latest record")
	}
	if latest.PSI != 7.4 || latest.Level != "critical" {
		t.Errorf("Unexpected latest record: %+v", latest)
	}

	_, ok, err = s.LatestPSI("TSM")
	if err != nil {
		t.Fatalf("LatestPSI failed: %v", err)
	}
	if ok {
		t.Error("Expected no record for unseen ticker")
	}
}

func TestAlertBookkeeping(t *testing.T) {
	s := mustStorage(t)

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	alerts := []AlertRecord{
		{AlertID: "SEN-1", Ticker: "AMAT", Timestamp: now.Add(-2 * time.Hour), Level: "alert", Classification: "Noise", PSI: 5.2},
		{AlertID: "SEN-2", Ticker: "AMAT", Timestamp: now.Add(-time.Hour), Level: "alert", Classification: "Noise", PSI: 5.6},
		{AlertID: "SEN-3", Ticker: "AMAT", Timestamp: now.Add(-10 * time.Minute), Trigger: "psi_critical", Level: "critical", Classification: "Catalyst", PSI: 8.1, Headline: "8-K filed"},
		{AlertID: "SEN-4", Ticker: "TSM", Timestamp: now.Add(-5 * time.Minute), Trigger: "price_surge", Level: "alert", Classification: "Fracture", PSI: 6.0},
	}
	for _, a := range alerts {
		if err := s.RecordAlert(a); err != nil {
			t.Fatalf("RecordAlert failed: %v", err)
		}
	}

	last, ok, err := s.LastAlertTime("AMAT")
	if err != nil {
		t.Fatalf("LastAlertTime failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected a last alert time")
	}
	if got := now.Sub(last); got < 9*time.Minute || got > 11*time.Minute {
		t.Errorf("Unexpected last alert age: %v", got)
	}

	_, ok, err = s.LastAlertTime("NVDA")
	if err != nil {
		t.Fatalf("LastAlertTime failed: %v", err)
	}
	if ok {
		t.Error("Expected no alert time for unseen ticker")
	}

	noise, err := s.CountAlertsSince("AMAT", "Noise", dayStart)
	if err != nil {
		t.Fatalf("CountAlertsSince failed: %v", err)
	}
	if noise != 2 {
		t.Errorf("Expected 2 noise alerts, got %d", noise)
	}

	all, err := s.CountAlertsSince("AMAT", "", dayStart)
	if err != nil {
		t.Fatalf("CountAlertsSince failed: %v", err)
	}
	if all != 3 {
		t.Errorf("Expected 3 total alerts, got %d", all)
	}

	recent, err := s.AlertsSince(now.Add(-90 * time.Minute))
	if err != nil {
		t.Fatalf("AlertsSince failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 alerts since cutoff, got %d", len(recent))
	}
	if recent[0].AlertID != "SEN-2" {
		t.Errorf("Expected oldest first, got %s", recent[0].AlertID)
	}
	if recent[1].Trigger != "psi_critical" || recent[2].Trigger != "price_surge" {
		t.Errorf("Trigger types not round-tripped: %q, %q", recent[1].Trigger, recent[2].Trigger)
	}
}

func TestSavePrice(t *testing.T) {
	s := mustStorage(t)

	snap := &models.PriceSnapshot{Ticker: "AMAT", ChangePct: -3.2, VolumeRatio: 4.1, LatestClose: 182.5}
	if err := s.SavePrice(snap, time.Now().UTC()); err != nil {
		t.Fatalf("SavePrice failed: %v", err)
	}
	// Same second overwrites instead of erroring
	if err := s.SavePrice(snap, time.Now().UTC()); err != nil {
		t.Fatalf("SavePrice overwrite failed: %v", err)
	}
}
