package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/oshokin/fire-watch/internal/logger"
)

// ErrNotConfigured is reported by the log-only notifier.
var ErrNotConfigured = errors.New("email notifications are not configured")

// Result is the outcome of one Send.
type Result struct {
	Sent bool
	Err  error
}

// ErrorText returns the error message or nil when there is none.
func (r Result) ErrorText() *string {
	if r.Err == nil {
		return nil
	}

	text := r.Err.Error()

	return &text
}

// Notifier delivers one alert.
type Notifier interface {
	Send(ctx context.Context, subject, body string) Result
}

// SMTPConfig holds the mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

// SMTPNotifier sends plain-text mail over STARTTLS with PLAIN auth.
type SMTPNotifier struct {
	cfg SMTPConfig
}

// NewSMTPNotifier validates cfg and returns a notifier.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	switch {
	case cfg.Host == "":
		return nil, errors.New("smtp host must be provided")
	case cfg.From == "":
		return nil, errors.New("smtp sender must be provided")
	case len(cfg.To) == 0:
		return nil, errors.New("smtp recipients must be provided")
	}

	return &SMTPNotifier{cfg: cfg}, nil
}

// Send builds and delivers the message. Failures are logged and returned in the Result.
func (n *SMTPNotifier) Send(ctx context.Context, subject, body string) Result {
	if err := n.send(ctx, subject, body); err != nil {
		logger.ErrorKV(ctx, "Failed to send email", "subject", subject, "error", err)

		return Result{Err: err}
	}

	logger.InfoKV(ctx, "Email sent", "subject", subject, "to", n.cfg.To)

	return Result{Sent: true}
}

func (n *SMTPNotifier) send(ctx context.Context, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}

	if err := msg.To(n.cfg.To...); err != nil {
		return fmt.Errorf("set recipients: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	options := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}

	if n.cfg.Timeout > 0 {
		options = append(options, mail.WithTimeout(n.cfg.Timeout))
	}

	if n.cfg.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}

	client, err := mail.NewClient(n.cfg.Host, options...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err = client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("deliver email: %w", err)
	}

	return nil
}

// LogNotifier only logs alerts. It is used when SMTP is not configured.
type LogNotifier struct{}

// Send logs the alert and reports ErrNotConfigured.
func (LogNotifier) Send(ctx context.Context, subject, body string) Result {
	logger.WarnKV(ctx, "Email alert not sent, SMTP is not configured", "subject", subject, "body", body)

	return Result{Err: ErrNotConfigured}
}
