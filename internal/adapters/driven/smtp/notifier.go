package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Notifier = (*Notifier)(nil)

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// From is the sender address
	From string

	// To are the recipient addresses
	To []string

	Logger *slog.Logger
}

// Notifier delivers operational notifications over SMTP. Delivery is
// best effort; callers treat failures as non-fatal.
type Notifier struct {
	config Config
	logger *slog.Logger

	// sendMail is swappable for tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewNotifier creates an SMTP-backed notifier.
func NewNotifier(cfg Config) *Notifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		config:   cfg,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// Notify sends a plain-text message to the configured recipients.
func (n *Notifier) Notify(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(n.config.To) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	var msg strings.Builder
	msg.WriteString("From: " + n.config.From + "\r\n")
	msg.WriteString("To: " + strings.Join(n.config.To, ", ") + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	if err := n.sendMail(addr, auth, n.config.From, n.config.To, []byte(msg.String())); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	n.logger.Debug("notification sent", "subject", subject, "recipients", len(n.config.To))
	return nil
}
