// Package summarizer turns a classified event into a short human-readable
// briefing. When an API key is configured it asks an OpenAI chat model;
// otherwise, or when the call fails, it falls back to a deterministic
// template built from the rule engine's own output. The rule verdict is
// authoritative either way; the model only phrases it.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rewired-gh/sentinel/internal/engine"
	"github.com/rewired-gh/sentinel/internal/logger"
	"github.com/rewired-gh/sentinel/internal/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Summary is the briefing attached to a dispatched alert
type Summary struct {
	Headline    string
	Detail      string
	AIGenerated bool
}

// Config holds summarizer settings
type Config struct {
	Enabled bool
	APIKey  string
	Model   string
	Timeout time.Duration
	BaseURL string
}

// Summarizer produces alert briefings
type Summarizer struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a summarizer, filling in defaults for unset fields
func New(cfg Config) *Summarizer {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Summarizer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Summarize builds the briefing for one classified event. It never returns
// an error: any AI failure degrades to the template summary.
func (s *Summarizer) Summarize(ctx context.Context, ticker string, psi models.PSIResult, cause engine.CauseResult) Summary {
	if !s.cfg.Enabled || s.cfg.APIKey == "" {
		return s.fallback(ticker, psi, cause)
	}

	summary, err := s.askModel(ctx, ticker, psi, cause)
	if err != nil {
		logger.Warn("summarizer fallback for %s: %v", ticker, err)
		return s.fallback(ticker, psi, cause)
	}
	return summary
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Summarizer) askModel(ctx context.Context, ticker string, psi models.PSIResult, cause engine.CauseResult) (Summary, error) {
	prompt := buildPrompt(ticker, psi, cause)

	body, err := json.Marshal(chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a terse equity analyst. Given scored evidence about a stock, write a one-line headline and a two-sentence detail. Respond with exactly two lines: the headline, then the detail. No markdown."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		return Summary{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Summary{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Summary{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Summary{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Summary{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != nil {
		return Summary{}, fmt.Errorf("api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Summary{}, fmt.Errorf("empty choices")
	}

	headline, detail, ok := splitReply(parsed.Choices[0].Message.Content)
	if !ok {
		return Summary{}, fmt.Errorf("malformed reply")
	}
	return Summary{Headline: headline, Detail: detail, AIGenerated: true}, nil
}

func buildPrompt(ticker string, psi models.PSIResult, cause engine.CauseResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n", ticker)
	fmt.Fprintf(&b, "PSI: %.1f (%s)\n", psi.PSITotal, psi.Level)
	fmt.Fprintf(&b, "Classification: %s (confidence %.2f)\n", cause.Classification.Type, cause.Classification.Confidence)
	fmt.Fprintf(&b, "Reasoning: %s\n", cause.Classification.Reasoning)
	b.WriteString("Top evidence:\n")
	for _, cand := range cause.Candidates {
		fmt.Fprintf(&b, "- [%s] %s (%s, relevance %.2f)\n",
			cand.EventType, cand.Title, cand.Source, cand.Confidence)
	}
	return b.String()
}

func splitReply(content string) (headline, detail string, ok bool) {
	lines := strings.SplitN(strings.TrimSpace(content), "\n", 2)
	headline = strings.TrimSpace(lines[0])
	if headline == "" {
		return "", "", false
	}
	if len(lines) == 2 {
		detail = strings.TrimSpace(lines[1])
	}
	return headline, detail, true
}

// fallback assembles the briefing from the engine output alone
func (s *Summarizer) fallback(ticker string, psi models.PSIResult, cause engine.CauseResult) Summary {
	classification := string(cause.Classification.Type)
	if classification == "" {
		classification = string(models.ClassUnknown)
	}
	reasoning := cause.Classification.Reasoning
	if reasoning == "" {
		reasoning = "insufficient evidence"
	}

	headline := fmt.Sprintf("%s: %s signal, PSI %.1f (%s)", ticker, classification, psi.PSITotal, psi.Level)

	var b strings.Builder
	fmt.Fprintf(&b, "Rule verdict: %s.", reasoning)
	if len(cause.Candidates) > 0 {
		top := cause.Candidates[0]
		fmt.Fprintf(&b, " Top evidence: %s (%s).", top.Title, top.Source)
	}
	return Summary{Headline: headline, Detail: b.String(), AIGenerated: false}
}
