package alerts

import (
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polysignal/internal/config"
)

// NewSender builds the sender for the configured alert modes. It returns nil
// when reports are disabled.
func NewSender(cfg *config.Config, log *logrus.Logger) Sender {
	var senders []Sender
	for _, mode := range cfg.AlertModes() {
		switch mode {
		case "none":
		case "log":
			senders = append(senders, NewLogSender(log))
		case "discord":
			if len(cfg.Alerts.DiscordWebhookURLs) == 0 {
				log.Warn("Discord mode specified but DISCORD_WEBHOOK_URLS not set")
				continue
			}
			for _, url := range cfg.Alerts.DiscordWebhookURLs {
				senders = append(senders, NewDiscordSender(url))
			}
		default:
			log.WithField("mode", mode).Warn("Unknown alert mode, skipping")
		}
	}

	switch len(senders) {
	case 0:
		return nil
	case 1:
		return senders[0]
	}
	return NewMultiSender(senders...)
}
