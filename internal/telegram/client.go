// Package telegram delivers sentinel alerts via the Telegram Bot API.
// It formats classified signals into MarkdownV2 messages and retries
// delivery with linear backoff.
package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/sentinel/internal/models"
	"github.com/rewired-gh/sentinel/internal/storage"
)

// AlertMessage carries everything the alert notification renders
type AlertMessage struct {
	AlertID        string
	Ticker         string
	Timestamp      time.Time
	PSI            float64
	Level          models.Level
	Classification models.ClassificationResult
	Headline       string
	Detail         string
	Candidates     []models.ReasonCandidate
	Playbook       models.Playbook
}

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendAlert delivers one classified signal
func (c *Client) SendAlert(a AlertMessage) error {
	return c.send(formatAlert(a))
}

// SendDailySummary delivers the end-of-day digest
func (c *Client) SendDailySummary(date time.Time, alerts []storage.AlertRecord) error {
	return c.send(formatDailySummary(date, alerts))
}

// send delivers a MarkdownV2 message with retry. When Telegram rejects
// the markup itself, the message is downgraded to plain text and resent
// rather than retried with the same unparseable payload.
func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if msg.ParseMode != "" && isParseError(err) {
			msg.ParseMode = ""
			continue
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// isParseError reports whether the API rejected the message markup
func isParseError(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == 400 && strings.Contains(apiErr.Message, "can't parse entities")
}

// formatAlert renders one alert as a MarkdownV2 message
func formatAlert(a AlertMessage) string {
	var b strings.Builder

	b.WriteString(levelEmoji(a.Level))
	fmt.Fprintf(&b, " *%s* %s\n", escapeMarkdownV2(a.Ticker), escapeMarkdownV2(string(a.Classification.Type)))
	fmt.Fprintf(&b, "`%s`\n\n", escapeMarkdownV2(a.AlertID))

	fmt.Fprintf(&b, "PSI: *%s* \\(%s\\), confidence %s\n",
		escapeMarkdownV2(fmt.Sprintf("%.1f", a.PSI)),
		escapeMarkdownV2(string(a.Level)),
		escapeMarkdownV2(fmt.Sprintf("%.2f", a.Classification.Confidence)))

	if a.Headline != "" {
		fmt.Fprintf(&b, "\n*%s*\n", escapeMarkdownV2(a.Headline))
	}
	if a.Detail != "" {
		fmt.Fprintf(&b, "%s\n", escapeMarkdownV2(a.Detail))
	}

	if len(a.Candidates) > 0 {
		b.WriteString("\nTop evidence:\n")
		for _, cand := range a.Candidates {
			title := escapeMarkdownV2(cand.Title)
			if cand.SourceURL != "" {
				title = fmt.Sprintf("[%s](%s)", title, cand.SourceURL)
			}
			fmt.Fprintf(&b, "%d\\. %s — %s\n", cand.Rank, title, escapeMarkdownV2(cand.Source))
		}
	}

	if len(a.Playbook.Actions) > 0 {
		fmt.Fprintf(&b, "\nPlaybook %s \\(reevaluate: %s\\)\n",
			escapeMarkdownV2(a.Playbook.ID), escapeMarkdownV2(a.Playbook.Reevaluation))
		for _, action := range a.Playbook.Actions {
			fmt.Fprintf(&b, "• %s\n", escapeMarkdownV2(action))
		}
	}

	fmt.Fprintf(&b, "\n%s", escapeMarkdownV2(a.Timestamp.Format("2006-01-02 15:04:05 MST")))
	return b.String()
}

// formatDailySummary renders the digest of a day's alerts
func formatDailySummary(date time.Time, alerts []storage.AlertRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📋 *Daily summary* %s\n\n", escapeMarkdownV2(date.Format("2006-01-02")))

	if len(alerts) == 0 {
		b.WriteString("No alerts today\\.\n")
		return b.String()
	}

	counts := map[string]int{}
	for _, a := range alerts {
		counts[a.Classification]++
	}
	fmt.Fprintf(&b, "%d alerts: %d Catalyst, %d Fracture, %d Noise\n\n",
		len(alerts), counts["Catalyst"], counts["Fracture"], counts["Noise"])

	for _, a := range alerts {
		line := fmt.Sprintf("%s %s PSI %.1f (%s)",
			a.Timestamp.Format("15:04"), a.Ticker, a.PSI, a.Classification)
		fmt.Fprintf(&b, "• %s\n", escapeMarkdownV2(line))
		if a.Headline != "" {
			fmt.Fprintf(&b, "  %s\n", escapeMarkdownV2(a.Headline))
		}
	}

	return b.String()
}

func levelEmoji(level models.Level) string {
	switch level {
	case models.LevelCritical:
		return "🚨"
	case models.LevelAlert:
		return "⚠️"
	case models.LevelWatch:
		return "👀"
	default:
		return "ℹ️"
	}
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
