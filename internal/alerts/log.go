package alerts

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polysignal/internal/metrics"
)

// LogSender sends reports to the logger
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the report
func (s *LogSender) Send(ctx context.Context, report *Report) error {
	s.log.WithFields(logrus.Fields{
		"severity":          report.Severity,
		"analysis_id":       report.AnalysisID,
		"market":            report.MarketQuestion,
		"condition_id":      report.ConditionID,
		"recommendation":    report.Recommendation,
		"confidence":        report.Confidence,
		"gate":              report.Gate,
		"top_outcome":       report.TopOutcome,
		"top_outcome_share": report.TopOutcomeShare,
		"top_wallet_share":  report.TopWalletShare,
		"wallets_qualified": report.WalletsQualified,
	}).Info("Recommendation report")
	metrics.RecordReport("success", "log")
	return nil
}
