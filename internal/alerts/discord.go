package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liamashdown/polysignal/internal/metrics"
)

// DiscordSender sends reports to Discord via webhook
type DiscordSender struct {
	webhookURL string
	httpClient *http.Client
}

// NewDiscordSender creates a new Discord sender
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send sends the report to Discord
func (s *DiscordSender) Send(ctx context.Context, report *Report) error {
	err := s.send(ctx, report)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordReport(status, "discord")
	return err
}

func (s *DiscordSender) send(ctx context.Context, report *Report) error {
	webhookPayload := map[string]interface{}{
		"embeds": []interface{}{s.buildEmbed(report)},
	}

	body, err := json.Marshal(webhookPayload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *DiscordSender) buildEmbed(r *Report) map[string]interface{} {
	var title string
	var color int
	switch r.Severity {
	case SeverityAlert:
		title = "📈 " + r.Recommendation
		color = 0x2ECC71 // Green
	default:
		title = "⏸️ STAY OUT (" + r.Gate + ")"
		color = 0x95A5A6 // Grey
	}

	description := fmt.Sprintf("**%s**\nConfidence **%.1f/10** from **%d** of %d holders",
		truncate(r.MarketQuestion, 200),
		r.Confidence,
		r.WalletsQualified,
		r.WalletsConsidered,
	)

	fields := []map[string]interface{}{
		{
			"name":   "Top Outcome",
			"value":  fmt.Sprintf("%s (%.1f%%)", orDash(r.TopOutcome), r.TopOutcomeShare*100),
			"inline": true,
		},
		{
			"name":   "Top Wallet Share",
			"value":  fmt.Sprintf("%.1f%%", r.TopWalletShare*100),
			"inline": true,
		},
	}
	if r.GateDetail != "" {
		fields = append(fields, map[string]interface{}{
			"name":   "Gate",
			"value":  truncate(r.GateDetail, 200),
			"inline": false,
		})
	}
	if len(r.Distribution) > 0 {
		fields = append(fields, map[string]interface{}{
			"name":   "📊 Weighted Stance",
			"value":  formatDistribution(r),
			"inline": false,
		})
	}
	if len(r.TopWallets) > 0 {
		fields = append(fields, map[string]interface{}{
			"name":   "🐋 Top Wallets",
			"value":  formatWallets(r),
			"inline": false,
		})
	}

	footer := map[string]interface{}{
		"text": fmt.Sprintf("Polysignal • %s • %s", r.Environment, r.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")),
	}

	return map[string]interface{}{
		"title":       title,
		"url":         r.MarketURL,
		"description": description,
		"color":       color,
		"fields":      fields,
		"footer":      footer,
		"timestamp":   r.Timestamp.Format(time.RFC3339),
	}
}

func formatDistribution(r *Report) string {
	parts := make([]string, 0, len(r.Distribution))
	for _, share := range r.Distribution {
		parts = append(parts, fmt.Sprintf("%s: **%.1f%%**", share.Outcome, share.Share*100))
	}
	return truncate(strings.Join(parts, "\n"), 1000)
}

func formatWallets(r *Report) string {
	parts := make([]string, 0, len(r.TopWallets))
	for _, w := range r.TopWallets {
		parts = append(parts, fmt.Sprintf("`%s` %s $%.0f (w %.1f)", w.AddressShort, w.Outcome, w.PositionValue, w.Weight))
	}
	return truncate(strings.Join(parts, "\n"), 1000)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
