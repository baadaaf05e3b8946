package notify

import (
	"context"
	"fmt"
	"time"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/config"
	"sectorindex/pkg/httputil"
	"sectorindex/pkg/logger"
)

// Notifier posts end-of-day summaries to an external webhook. A nil
// Notifier (no URL configured) is safe to call and does nothing.
type Notifier struct {
	url    string
	client *httputil.Client
	logger *logger.Logger
}

// NewNotifier builds a notifier from config. Returns nil when no
// webhook URL is set.
func NewNotifier(cfg config.WebhookConfig, log *logger.Logger) *Notifier {
	if cfg.URL == "" {
		return nil
	}
	client := httputil.New(log, cfg.RequestTimeout).
		WithRateLimit(cfg.RatePerMinute)
	return &Notifier{url: cfg.URL, client: client, logger: log}
}

type dayEndPayload struct {
	Event     string                        `json:"event"`
	Date      string                        `json:"date"`
	Summaries []contracts.DailyIndexSummary `json:"summaries"`
	SentAt    time.Time                     `json:"sent_at"`
}

// NotifyDayEnd sends the day's summaries. Matches the session machine's
// day-end hook signature.
func (n *Notifier) NotifyDayEnd(ctx context.Context, day time.Time, summaries []contracts.DailyIndexSummary) error {
	if n == nil {
		return nil
	}

	payload := dayEndPayload{
		Event:     "day_end",
		Date:      day.Format("2006-01-02"),
		Summaries: summaries,
		SentAt:    time.Now(),
	}

	resp, err := n.client.PostJSON(ctx, n.url, payload)
	if err != nil {
		return fmt.Errorf("post day-end webhook: %w", err)
	}
	defer resp.Body.Close()

	n.logger.WithFields(map[string]interface{}{
		"url":    n.url,
		"status": resp.StatusCode,
		"rows":   len(summaries),
	}).Info("Sent day-end webhook")
	return nil
}
