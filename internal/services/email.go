package services

import (
	"context"
	"fmt"

	"campusevents/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer}
}

// SendNotice renders the template named after the notice kind and sends it to data.Email.
func (s *emailService) SendNotice(ctx context.Context, kind domain.NoticeKind, data *domain.NoticeEmailData) error {
	if data == nil {
		return fmt.Errorf("%s email data is nil", kind)
	}
	if data.Email == "" {
		return fmt.Errorf("%s email has no recipient address", kind)
	}
	subject, htmlBody, textBody, err := s.renderer.Render(string(kind), data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", kind, err)
	}
	if err := s.mailer.Send(ctx, data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}
	return nil
}
