package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rewired-gh/sentinel/internal/models"
)

// chartResponse mirrors the slice of the Yahoo chart API response we use
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// CollectPrice fetches a daily chart for the ticker and derives the price
// snapshot: percent change against the previous close and today's volume
// relative to the trailing average.
func (c *Client) CollectPrice(ctx context.Context, ticker string) (*models.PriceSnapshot, error) {
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?range=1mo&interval=1d",
		c.cfg.YahooBaseURL, url.PathEscape(ticker))

	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart: %w", err)
	}
	defer resp.Body.Close()

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("failed to decode chart: %w", err)
	}

	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("empty chart response for %s", ticker)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	latest := result.Meta.RegularMarketPrice
	if latest == 0 {
		latest = lastNonZero(quote.Close)
	}
	if latest == 0 {
		return nil, fmt.Errorf("no close data for %s", ticker)
	}

	prevClose := result.Meta.PreviousClose
	if prevClose == 0 && len(quote.Close) >= 2 {
		prevClose = quote.Close[len(quote.Close)-2]
	}

	changePct := 0.0
	if prevClose > 0 {
		changePct = (latest - prevClose) / prevClose * 100
	}

	return &models.PriceSnapshot{
		Ticker:      ticker,
		ChangePct:   changePct,
		VolumeRatio: volumeRatio(quote.Volume),
		LatestClose: latest,
	}, nil
}

// volumeRatio compares the latest session's volume against the mean of the
// preceding sessions. Returns 1.0 when there is not enough history.
func volumeRatio(volumes []float64) float64 {
	var history []float64
	for _, v := range volumes {
		if v > 0 {
			history = append(history, v)
		}
	}
	if len(history) < 2 {
		return 1.0
	}

	latest := history[len(history)-1]
	prior := history[:len(history)-1]
	sum := 0.0
	for _, v := range prior {
		sum += v
	}
	mean := sum / float64(len(prior))
	if mean == 0 {
		return 1.0
	}
	return latest / mean
}

func lastNonZero(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != 0 {
			return values[i]
		}
	}
	return 0
}
