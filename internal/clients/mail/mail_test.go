package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"waitlist-server/internal/config"
	"waitlist-server/internal/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMessage = Message{
	FromName:  "Waitlist",
	FromEmail: "hello@example.com",
	To:        "user@example.org",
	ReplyTo:   "hello@example.com",
	Subject:   "Welcome to Acme",
	Text:      "Hi there,\nThanks for joining.\n",
}

// smtpSession records one conversation with the fake server.
type smtpSession struct {
	mu   sync.Mutex
	auth string
	from string
	rcpt []string
	data string
}

type smtpServerOptions struct {
	rejectRcpt bool
	offerAuth  bool
}

// startSMTPServer runs a minimal SMTP server for a single connection.
func startSMTPServer(t *testing.T, opts smtpServerOptions) (string, int, *smtpSession) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	session := &smtpSession{}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP test")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				_ = tp.PrintfLine("250-localhost")
				if opts.offerAuth {
					_ = tp.PrintfLine("250-AUTH PLAIN")
				}
				_ = tp.PrintfLine("250 8BITMIME")
			case strings.HasPrefix(cmd, "AUTH PLAIN"):
				session.mu.Lock()
				session.auth = line
				session.mu.Unlock()
				_ = tp.PrintfLine("235 2.7.0 authenticated")
			case strings.HasPrefix(cmd, "HELO"):
				_ = tp.PrintfLine("250 localhost")
			case strings.HasPrefix(cmd, "MAIL FROM:"):
				session.mu.Lock()
				session.from = line
				session.mu.Unlock()
				_ = tp.PrintfLine("250 OK")
			case strings.HasPrefix(cmd, "RCPT TO:"):
				if opts.rejectRcpt {
					_ = tp.PrintfLine("550 no such user")
					continue
				}
				session.mu.Lock()
				session.rcpt = append(session.rcpt, line)
				session.mu.Unlock()
				_ = tp.PrintfLine("250 OK")
			case cmd == "DATA":
				_ = tp.PrintfLine("354 go ahead")
				data, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				session.mu.Lock()
				session.data = string(data)
				session.mu.Unlock()
				_ = tp.PrintfLine("250 queued")
			case cmd == "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 not implemented")
			}
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port, session
}

func TestSMTPClient_Send(t *testing.T) {
	host, port, session := startSMTPServer(t, smtpServerOptions{})
	client := NewSMTPClient(SMTPConfig{Host: host, Port: port}, observability.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Send(ctx, testMessage))

	session.mu.Lock()
	defer session.mu.Unlock()
	assert.Contains(t, session.from, "<hello@example.com>")
	require.Len(t, session.rcpt, 1)
	assert.Contains(t, session.rcpt[0], "<user@example.org>")
	assert.Contains(t, session.data, "From: \"Waitlist\" <hello@example.com>\n")
	assert.Contains(t, session.data, "Reply-To: <hello@example.com>\n")
	assert.Contains(t, session.data, "Subject: Welcome to Acme\n")
	assert.Contains(t, session.data, "Content-Type: text/plain; charset=UTF-8\n")
	assert.Contains(t, session.data, "Hi there,\nThanks for joining.\n")
}

func TestSMTPClient_RecipientRejected(t *testing.T) {
	host, port, _ := startSMTPServer(t, smtpServerOptions{rejectRcpt: true})
	client := NewSMTPClient(SMTPConfig{Host: host, Port: port}, observability.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := client.Send(ctx, testMessage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RCPT TO")
}

func TestSMTPClient_Authenticates(t *testing.T) {
	host, port, session := startSMTPServer(t, smtpServerOptions{offerAuth: true})
	client := NewSMTPClient(SMTPConfig{Host: host, Port: port, Username: "mailer", Password: "s3cret"}, observability.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Send(ctx, testMessage))

	session.mu.Lock()
	defer session.mu.Unlock()
	want := "AUTH PLAIN " + base64.StdEncoding.EncodeToString([]byte("\x00mailer\x00s3cret"))
	assert.Equal(t, want, session.auth)
	assert.Contains(t, session.from, "<hello@example.com>")
}

func TestSMTPClient_CredentialsWithoutAuthSupport(t *testing.T) {
	host, port, session := startSMTPServer(t, smtpServerOptions{})
	client := NewSMTPClient(SMTPConfig{Host: host, Port: port, Username: "mailer", Password: "s3cret"}, observability.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := client.Send(ctx, testMessage)
	require.ErrorIs(t, err, ErrAuthUnsupported)

	session.mu.Lock()
	defer session.mu.Unlock()
	assert.Empty(t, session.from)
}

func TestSMTPClient_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	client := NewSMTPClient(SMTPConfig{Host: "127.0.0.1", Port: addr.Port}, observability.NewNop())
	assert.Error(t, client.Send(context.Background(), testMessage))
}

func TestSMTPClient_BuildMessage(t *testing.T) {
	client := NewSMTPClient(SMTPConfig{Host: "mail.example.com"}, observability.NewNop())
	client.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }

	msg := testMessage
	msg.Subject = "Bienvenue à Acme"
	raw := string(client.buildMessage(msg))

	assert.Contains(t, raw, "Date: Sat, 17 Oct 2026 12:00:00 +0000\r\n")
	assert.Contains(t, raw, "Subject: =?utf-8?q?Bienvenue_=C3=A0_Acme?=\r\n")
	assert.Contains(t, raw, "@example.com>\r\n")
	assert.True(t, strings.HasSuffix(raw, "Hi there,\r\nThanks for joining.\r\n"))
	assert.Equal(t, "mail.example.com:587", client.addr)
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, `"Waitlist" <hello@example.com>`, FormatAddress("Waitlist", "hello@example.com"))
	assert.Equal(t, `<hello@example.com>`, FormatAddress("  ", "hello@example.com"))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESClient_Send(t *testing.T) {
	fake := &fakeSES{}
	client := &SESClient{client: fake, logger: observability.NewNop()}

	require.NoError(t, client.Send(context.Background(), testMessage))
	require.NotNil(t, fake.input)
	assert.Equal(t, `"Waitlist" <hello@example.com>`, aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"user@example.org"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, []string{"hello@example.com"}, fake.input.ReplyToAddresses)
	assert.Equal(t, "Welcome to Acme", aws.ToString(fake.input.Content.Simple.Subject.Data))
	assert.Equal(t, testMessage.Text, aws.ToString(fake.input.Content.Simple.Body.Text.Data))
	assert.Nil(t, fake.input.Content.Simple.Body.Html)
}

func TestSESClient_SendError(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}
	client := &SESClient{client: fake, logger: observability.NewNop()}

	err := client.Send(context.Background(), testMessage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(observability.NewNop()).Send(context.Background(), testMessage))
}

func TestNewSender(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent/aws-config")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent/aws-credentials")
	logger := observability.NewNop()
	ctx := context.Background()

	sender, err := NewSender(ctx, config.MailConfig{Provider: config.MailProviderLog}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, sender)

	sender, err = NewSender(ctx, config.MailConfig{
		Provider: config.MailProviderSMTP,
		SMTP:     config.SMTPConfig{Host: "mail.example.com", Port: 2525},
	}, logger)
	require.NoError(t, err)
	require.IsType(t, &SMTPClient{}, sender)
	assert.Equal(t, "mail.example.com:2525", sender.(*SMTPClient).addr)

	sender, err = NewSender(ctx, config.MailConfig{
		Provider: config.MailProviderResend,
		Resend:   config.ResendConfig{APIKey: "re_test"},
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &ResendClient{}, sender)

	sender, err = NewSender(ctx, config.MailConfig{
		Provider: config.MailProviderSES,
		SES:      config.SESConfig{Region: "eu-west-1", AccessKeyID: "AKID", SecretAccessKey: "secret"},
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SESClient{}, sender)

	_, err = NewSender(ctx, config.MailConfig{Provider: "pigeon"}, logger)
	assert.Error(t, err)
}
