package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
)

// ErrInvalidAddress is returned when an email address fails validation
var ErrInvalidAddress = errors.New("invalid email address")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string // From address on outgoing mail
	Logger   *slog.Logger
}

// Message is one outgoing follow-up email. ReplyTo carries the requesting
// user's address so replies go to them, not the service account.
type Message struct {
	ReplyTo    string
	Recipients []string
	Subject    string
	Body       string
}

// Mailer delivers composed messages over SMTP with implicit TLS
type Mailer struct {
	config *Config
	logger *slog.Logger
}

// New creates a mailer
func New(cfg *Config) *Mailer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Mailer{
		config: cfg,
		logger: logger,
	}
}

// ValidAddress reports whether addr parses as an email address
func ValidAddress(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

// Send validates the message and delivers it. Delivery is synchronous but
// fire-and-forget from the job pipeline's point of view: nothing upstream
// depends on the outcome.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !ValidAddress(msg.ReplyTo) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, msg.ReplyTo)
	}

	if len(msg.Recipients) == 0 {
		return errors.New("no recipients provided")
	}

	for _, rcpt := range msg.Recipients {
		if !ValidAddress(rcpt) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, rcpt)
		}
	}

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial SMTP server: %w", err)
	}

	tlsConn := tls.Client(conn, &tls.Config{ServerName: m.config.Host})

	client, err := smtp.NewClient(tlsConn, m.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := client.Mail(m.config.Sender); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	for _, rcpt := range msg.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to add recipient %q: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open message body: %w", err)
	}

	if _, err := writer.Write(m.compose(msg)); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish message body: %w", err)
	}

	if err := client.Quit(); err != nil {
		m.logger.Warn("SMTP quit failed after delivery",
			slog.Any("error", err),
		)
	}

	m.logger.Info("Email delivered",
		slog.Int("recipients", len(msg.Recipients)),
		slog.String("subject", msg.Subject),
	)

	return nil
}

// compose renders the message headers and body
func (m *Mailer) compose(msg Message) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", m.config.Sender)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&b, "Reply-To: %s\r\n", msg.ReplyTo)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	return []byte(b.String())
}
