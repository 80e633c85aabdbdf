package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// NoticeEmailData is the template data for every notice email.
type NoticeEmailData struct {
	Email         string
	RecipientName string
	Title         string
	Message       string
	NoticeData
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendNotice(ctx context.Context, kind NoticeKind, data *NoticeEmailData) error
}
