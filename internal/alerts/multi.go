package alerts

import (
	"context"
	"fmt"
)

// MultiSender sends reports to multiple destinations
type MultiSender struct {
	senders []Sender
}

// NewMultiSender creates a new multi-sender
func NewMultiSender(senders ...Sender) *MultiSender {
	return &MultiSender{
		senders: senders,
	}
}

// Send sends the report to all configured senders
func (s *MultiSender) Send(ctx context.Context, report *Report) error {
	var errs []error
	for i, sender := range s.senders {
		if err := sender.Send(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("sender %d: %w", i, err))
		}
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("multi-sender errors: %v", errs)
}
