package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"waitlist-server/internal/observability"

	"github.com/google/uuid"
)

const defaultSMTPPort = 587

// ErrAuthUnsupported is returned when credentials are configured but the
// server does not offer AUTH.
var ErrAuthUnsupported = errors.New("smtp server does not support AUTH")

// SMTPConfig holds the relay settings for the SMTP transport
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPClient delivers mail over SMTP. It upgrades with STARTTLS when the
// server offers it and authenticates with PLAIN when credentials are set.
// Configured credentials are never silently skipped.
type SMTPClient struct {
	host     string
	addr     string
	username string
	password string
	dialer   *net.Dialer
	now      func() time.Time
	logger   *observability.Logger
}

func NewSMTPClient(cfg SMTPConfig, logger *observability.Logger) *SMTPClient {
	port := cfg.Port
	if port == 0 {
		port = defaultSMTPPort
	}
	return &SMTPClient{
		host:     cfg.Host,
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		username: cfg.Username,
		password: cfg.Password,
		dialer:   &net.Dialer{Timeout: 30 * time.Second},
		now:      time.Now,
		logger:   logger,
	}
}

func (c *SMTPClient) Send(ctx context.Context, msg Message) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "mail_provider", Value: "smtp"},
		observability.Field{Key: "smtp_addr", Value: c.addr},
		observability.Field{Key: "email_to", Value: observability.RedactEmail(msg.To)},
	)

	if err := c.send(ctx, msg); err != nil {
		c.logger.Error(ctx, "failed to send email via SMTP", err)
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}

	c.logger.Info(ctx, "email sent successfully")
	return nil
}

func (c *SMTPClient) send(ctx context.Context, msg Message) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.addr, err)
	}
	// The whole conversation is bounded by the caller's deadline.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, c.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: c.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	}

	if c.username != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return ErrAuthUnsupported
		}
		if err := client.Auth(smtp.PlainAuth("", c.username, c.password, c.host)); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	}

	if err := client.Mail(msg.FromEmail); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(c.buildMessage(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("DATA close: %w", err)
	}
	return client.Quit()
}

// buildMessage renders the RFC 5322 message with CRLF line endings.
func (c *SMTPClient) buildMessage(msg Message) []byte {
	var buf bytes.Buffer
	header := func(key, value string) {
		buf.WriteString(key)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}

	header("From", msg.From())
	header("To", FormatAddress("", msg.To))
	if msg.ReplyTo != "" {
		header("Reply-To", FormatAddress("", msg.ReplyTo))
	}
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", c.now().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.New().String(), domainOf(msg.FromEmail)))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	header("Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")

	body := strings.ReplaceAll(msg.Text, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\r\n") {
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}
