package collector

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCollectPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/AMAT" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"chart": {
				"result": [{
					"meta": {"regularMarketPrice": 210.0, "chartPreviousClose": 200.0},
					"indicators": {"quote": [{
						"close": [195.0, 198.0, 200.0, 210.0],
						"volume": [1000000, 1000000, 1000000, 4000000]
					}]}
				}],
				"error": null
			}
		}`)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.YahooBaseURL = srv.URL
	c := New(cfg)

	snap, err := c.CollectPrice(context.Background(), "AMAT")
	if err != nil {
		t.Fatalf("CollectPrice failed: %v", err)
	}

	if snap.Ticker != "AMAT" {
		t.Errorf("Unexpected ticker: %s", snap.Ticker)
	}
	if math.Abs(snap.ChangePct-5.0) > 1e-9 {
		t.Errorf("Expected +5%% change, got %f", snap.ChangePct)
	}
	if math.Abs(snap.VolumeRatio-4.0) > 1e-9 {
		t.Errorf("Expected volume ratio 4.0, got %f", snap.VolumeRatio)
	}
	if snap.LatestClose != 210.0 {
		t.Errorf("Unexpected latest close: %f", snap.LatestClose)
	}
}

func TestCollectPrice_ChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart": {"result": [], "error": {"code": "Not Found", "description": "No data found"}}}`)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.YahooBaseURL = srv.URL
	c := New(cfg)

	if _, err := c.CollectPrice(context.Background(), "BOGUS"); err == nil {
		t.Fatal("Expected an error for a chart error response")
	}
}

func TestVolumeRatio(t *testing.T) {
	tests := []struct {
		name    string
		volumes []float64
		want    float64
	}{
		{"spike", []float64{100, 100, 100, 300}, 3.0},
		{"flat", []float64{100, 100, 100}, 1.0},
		{"zero days ignored", []float64{100, 0, 100, 200}, 2.0},
		{"too little history", []float64{100}, 1.0},
		{"empty", nil, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := volumeRatio(tt.volumes); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("volumeRatio(%v) = %f, want %f", tt.volumes, got, tt.want)
			}
		})
	}
}
