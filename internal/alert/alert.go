// Package alert decides whether a classified signal actually reaches the
// operator. It applies the per-ticker cooldown and the daily Noise cap,
// renders the console block, forwards to Telegram when configured, and
// records every dispatched alert for the daily summary.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/rewired-gh/sentinel/internal/engine"
	"github.com/rewired-gh/sentinel/internal/logger"
	"github.com/rewired-gh/sentinel/internal/models"
	"github.com/rewired-gh/sentinel/internal/storage"
	"github.com/rewired-gh/sentinel/internal/summarizer"
	"github.com/rewired-gh/sentinel/internal/telegram"
)

// Notifier is the outbound delivery channel. Nil-safe: the manager works
// without one and only writes to the console and the database.
type Notifier interface {
	SendAlert(a telegram.AlertMessage) error
}

// Trigger values recorded with a dispatched alert
const (
	TriggerPSICritical = "psi_critical"
	TriggerPriceSurge  = "price_surge"
)

// Signal is one classified event submitted for dispatch. An empty Trigger
// is recorded as psi_critical.
type Signal struct {
	Ticker  string
	PSI     models.PSIResult
	Cause   engine.CauseResult
	Summary summarizer.Summary
	Trigger string
}

// Config holds alert fatigue controls
type Config struct {
	Cooldown       time.Duration
	NoiseMaxPerDay int
	Location       *time.Location
}

// Manager applies dispatch policy and fans out accepted alerts
type Manager struct {
	cfg      Config
	store    *storage.Storage
	notifier Notifier
}

// New creates an alert manager. notifier may be nil.
func New(cfg Config, store *storage.Storage, notifier Notifier) *Manager {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Manager{cfg: cfg, store: store, notifier: notifier}
}

// Dispatch applies the fatigue policy to a signal. Returns true when the
// alert was sent, false when it was suppressed.
func (m *Manager) Dispatch(sig Signal) (bool, error) {
	now := sig.PSI.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ok, reason, err := m.shouldDispatch(sig, now)
	if err != nil {
		return false, err
	}
	if !ok {
		logger.Debug("alert suppressed for %s: %s", sig.Ticker, reason)
		return false, nil
	}

	alertID := buildAlertID(sig.Ticker, now.In(m.cfg.Location))

	msg := telegram.AlertMessage{
		AlertID:        alertID,
		Ticker:         sig.Ticker,
		Timestamp:      now,
		PSI:            sig.PSI.PSITotal,
		Level:          sig.PSI.Level,
		Classification: sig.Cause.Classification,
		Headline:       sig.Summary.Headline,
		Detail:         sig.Summary.Detail,
		Candidates:     sig.Cause.Candidates,
		Playbook:       sig.Cause.Playbook,
	}

	fmt.Print(renderConsole(msg))

	if m.notifier != nil {
		if err := m.notifier.SendAlert(msg); err != nil {
			// Delivery failure must not lose the alert record; the
			// console block already went out.
			logger.Error("telegram delivery failed for %s: %v", alertID, err)
		}
	}

	trigger := sig.Trigger
	if trigger == "" {
		trigger = TriggerPSICritical
	}
	record := storage.AlertRecord{
		AlertID:        alertID,
		Ticker:         sig.Ticker,
		Timestamp:      now,
		Trigger:        trigger,
		Level:          string(sig.PSI.Level),
		Classification: string(sig.Cause.Classification.Type),
		PSI:            sig.PSI.PSITotal,
		Headline:       sig.Summary.Headline,
	}
	if err := m.store.RecordAlert(record); err != nil {
		return true, fmt.Errorf("failed to record alert: %w", err)
	}

	return true, nil
}

// shouldDispatch evaluates the fatigue policy
func (m *Manager) shouldDispatch(sig Signal, now time.Time) (bool, string, error) {
	last, found, err := m.store.LastAlertTime(sig.Ticker)
	if err != nil {
		return false, "", err
	}
	if found && now.Sub(last) < m.cfg.Cooldown {
		return false, fmt.Sprintf("cooldown active, last alert %s ago", now.Sub(last).Round(time.Second)), nil
	}

	if sig.Cause.Classification.Type == models.ClassNoise && m.cfg.NoiseMaxPerDay > 0 {
		local := now.In(m.cfg.Location)
		dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.cfg.Location)
		count, err := m.store.CountAlertsSince(sig.Ticker, string(models.ClassNoise), dayStart)
		if err != nil {
			return false, "", err
		}
		if count >= m.cfg.NoiseMaxPerDay {
			return false, fmt.Sprintf("noise cap reached (%d today)", count), nil
		}
	}

	return true, "", nil
}

// buildAlertID produces a stable, sortable alert identifier
func buildAlertID(ticker string, at time.Time) string {
	return fmt.Sprintf("SEN-%s-%s-%s", at.Format("20060102"), ticker, at.Format("150405"))
}

// renderConsole builds the plain-text block printed for every alert
func renderConsole(msg telegram.AlertMessage) string {
	var b strings.Builder

	line := strings.Repeat("=", 64)
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "%s  %s  PSI %.1f (%s)\n", msg.AlertID, msg.Ticker, msg.PSI, msg.Level)
	fmt.Fprintf(&b, "%s, confidence %.2f\n", msg.Classification.Type, msg.Classification.Confidence)
	if msg.Headline != "" {
		fmt.Fprintf(&b, "%s\n", msg.Headline)
	}
	if msg.Detail != "" {
		fmt.Fprintf(&b, "%s\n", msg.Detail)
	}
	if len(msg.Candidates) > 0 {
		b.WriteString("Evidence:\n")
		for _, cand := range msg.Candidates {
			fmt.Fprintf(&b, "  %d. [%s] %s (%s, %.2f)\n",
				cand.Rank, cand.EventType, cand.Title, cand.Source, cand.Confidence)
		}
	}
	if len(msg.Playbook.Actions) > 0 {
		fmt.Fprintf(&b, "Playbook %s (reevaluate: %s)\n", msg.Playbook.ID, msg.Playbook.Reevaluation)
		for _, action := range msg.Playbook.Actions {
			fmt.Fprintf(&b, "  - %s\n", action)
		}
	}
	fmt.Fprintf(&b, "%s\n", line)

	return b.String()
}
