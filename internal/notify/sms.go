package notify

import (
	"context"
	"fmt"

	"github.com/bookinglink/bookinglink/pkg/logging"
)

// SMSMessage is a text message to be sent.
type SMSMessage struct {
	To   string
	Body string
}

// SMSSender sends one SMS.
type SMSSender interface {
	Send(ctx context.Context, msg SMSMessage) error
}

// SendFunc adapts a plain send function (a gateway client, a messenger
// bridge) into an SMSSender.
type SendFunc func(ctx context.Context, to, body string) error

// FuncSMSSender wraps a send function with a fixed sender number.
type FuncSMSSender struct {
	from   string
	send   SendFunc
	logger *logging.Logger
}

func NewFuncSMSSender(from string, send SendFunc, logger *logging.Logger) *FuncSMSSender {
	if send == nil {
		panic("notify: send function cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FuncSMSSender{from: from, send: send, logger: logger}
}

func (s *FuncSMSSender) Send(ctx context.Context, msg SMSMessage) error {
	if msg.To == "" {
		return fmt.Errorf("notify: sms recipient required")
	}
	if err := s.send(ctx, msg.To, msg.Body); err != nil {
		s.logger.Error("notify: sms send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: sms send failed: %w", err)
	}
	s.logger.Info("notify: sms sent", "to", msg.To, "from", s.from)
	return nil
}

// StubSMSSender is a no-op sender for tests or when SMS is disabled.
type StubSMSSender struct {
	logger *logging.Logger
}

func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

// Send logs the SMS without sending it.
func (s *StubSMSSender) Send(ctx context.Context, msg SMSMessage) error {
	s.logger.Info("notify: stub sms sender, would send", "to", msg.To)
	return nil
}

var _ SMSSender = (*FuncSMSSender)(nil)
var _ SMSSender = (*StubSMSSender)(nil)
