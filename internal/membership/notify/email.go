package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"

	"orgapi/internal/membership/models"
	"orgapi/pkg/email"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[models.EventKind]string{
	models.EventReceived: "We have received your membership application",
	models.EventAccepted: "Your membership application has been accepted",
	models.EventRejected: "Your membership application",
}

// EmailSender is the part of the Resend client used for delivery.
// resend.Client.Emails satisfies it.
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type EmailConfig struct {
	From         string
	Organization string
	ReplyTo      string
	Bcc          []string
}

// EmailNotifier renders one HTML template per event kind and sends it
// through Resend.
type EmailNotifier struct {
	sender    EmailSender
	cfg       EmailConfig
	templates map[models.EventKind]*template.Template
}

type emailData struct {
	Name             string
	Organization     string
	PaymentReference string
	Reason           string
}

// NewResendNotifier builds an EmailNotifier backed by a Resend API client.
func NewResendNotifier(apiKey string, cfg EmailConfig) (*EmailNotifier, error) {
	if apiKey == "" {
		return nil, errors.New("resend api key is required")
	}
	return NewEmailNotifier(resend.NewClient(apiKey).Emails, cfg)
}

func NewEmailNotifier(sender EmailSender, cfg EmailConfig) (*EmailNotifier, error) {
	if sender == nil {
		return nil, errors.New("email sender is required")
	}
	if cfg.From == "" {
		return nil, errors.New("email from address is required")
	}
	templates := make(map[models.EventKind]*template.Template, len(subjects))
	for kind := range subjects {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", fmt.Sprintf("templates/%s.html", kind))
		if err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", kind, err)
		}
		templates[kind] = tmpl
	}
	return &EmailNotifier{sender: sender, cfg: cfg, templates: templates}, nil
}

func (n *EmailNotifier) Send(ctx context.Context, to string, kind models.EventKind, applicant *models.Applicant, extra map[string]string) error {
	body, err := n.Render(kind, applicant, extra)
	if err != nil {
		return err
	}
	params := &resend.SendEmailRequest{
		From:    n.cfg.From,
		To:      []string{to},
		Subject: subjects[kind],
		Html:    body,
		Bcc:     n.cfg.Bcc,
	}
	if n.cfg.ReplyTo != "" {
		params.ReplyTo = n.cfg.ReplyTo
	}
	if _, err := n.sender.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	return nil
}

// Render produces the HTML body for a notification.
func (n *EmailNotifier) Render(kind models.EventKind, applicant *models.Applicant, extra map[string]string) (string, error) {
	tmpl, ok := n.templates[kind]
	if !ok {
		return "", fmt.Errorf("no email template for %q", kind)
	}
	data := emailData{
		Name:             email.DisplayName(applicant.FirstName, applicant.LastName, applicant.Email),
		Organization:     n.cfg.Organization,
		PaymentReference: applicant.PaymentReference,
		Reason:           extra[ExtraReason],
	}
	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, "layout", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", kind, err)
	}
	return body.String(), nil
}
