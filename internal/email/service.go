package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"waitlist-server/internal/clients/mail"
	"waitlist-server/internal/observability"
)

var (
	ErrNotificationFailed = errors.New("welcome email could not be sent")
	ErrEmptyTemplate      = errors.New("email template is empty")
)

const defaultSendTimeout = 10 * time.Second

const welcomeSubject = `Welcome to {{.SiteName}}`

const welcomeBody = `Hi there,

Thanks for signing up for {{.SiteName}}! You are now on the waitlist.

What happens next:
- We'll notify you as soon as your account is ready
- Start earning points as soon as you join
- Get your first month completely free with {{.Points}} points

Stay tuned, we'll email you when everything is ready!

Best regards,
The {{.SiteName}} Team
{{.FromName}}
`

// TemplateData represents the data that can be used in templates
type TemplateData struct {
	Email    string
	SiteName string
	FromName string
	Points   int
}

// Config holds the sender identity and template values
type Config struct {
	FromName  string
	FromEmail string
	SiteName  string
	Points    int
	Timeout   time.Duration
}

// EmailService renders and sends the welcome email
type EmailService struct {
	sender    mail.Sender
	logger    *observability.Logger
	cfg       Config
	templates map[string]*template.Template
}

// New creates a new EmailService. The welcome templates are parsed once.
func New(sender mail.Sender, cfg Config, logger *observability.Logger) (*EmailService, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSendTimeout
	}

	s := &EmailService{
		sender:    sender,
		logger:    logger,
		cfg:       cfg,
		templates: make(map[string]*template.Template),
	}
	for name, text := range map[string]string{
		"welcome_subject": welcomeSubject,
		"welcome_body":    welcomeBody,
	} {
		if err := s.RegisterTemplate(name, text); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RegisterTemplate parses and stores a template under name
func (s *EmailService) RegisterTemplate(name, text string) error {
	if text == "" {
		return fmt.Errorf("%w: %s", ErrEmptyTemplate, name)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	s.templates[name] = tmpl
	return nil
}

// renderTemplate renders a template with the provided data
func (s *EmailService) renderTemplate(templateName string, data TemplateData) (string, error) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// BuildWelcomeMessage renders the welcome message for to.
func (s *EmailService) BuildWelcomeMessage(to string) (mail.Message, error) {
	data := TemplateData{
		Email:    to,
		SiteName: s.cfg.SiteName,
		FromName: s.cfg.FromName,
		Points:   s.cfg.Points,
	}

	subject, err := s.renderTemplate("welcome_subject", data)
	if err != nil {
		return mail.Message{}, err
	}
	body, err := s.renderTemplate("welcome_body", data)
	if err != nil {
		return mail.Message{}, err
	}

	return mail.Message{
		FromName:  s.cfg.FromName,
		FromEmail: s.cfg.FromEmail,
		To:        to,
		ReplyTo:   s.cfg.FromEmail,
		Subject:   subject,
		Text:      body,
	}, nil
}

// SendWelcomeEmail sends the welcome email to a new waitlist entry. Any
// failure is reported as ErrNotificationFailed.
func (s *EmailService) SendWelcomeEmail(ctx context.Context, to string) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_type", Value: "welcome"},
		observability.Field{Key: "recipient", Value: observability.RedactEmail(to)},
	)

	msg, err := s.BuildWelcomeMessage(to)
	if err != nil {
		s.logger.Error(ctx, "failed to render welcome email template", err)
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.Error(ctx, "failed to send welcome email", err)
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	return nil
}
