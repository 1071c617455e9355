package forms

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"
)

// Notifier é o colaborador externo que recebe as submissões validadas
// (e-mail, CRM, provedor de newsletter).
type Notifier interface {
	NotifyContact(ctx context.Context, s ContactSubmission) error
	NotifyNewsletter(ctx context.Context, s NewsletterSubmission) error
}

// LogNotifier só registra a submissão. É o padrão quando nada foi configurado.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n LogNotifier) NotifyContact(ctx context.Context, s ContactSubmission) error {
	n.logger().InfoContext(ctx, "contact submission",
		"submission_id", s.ID,
		"client", s.Client,
		"subject", s.Payload.Subject,
		"has_company", s.Payload.Company != "",
		"message_len", utf8.RuneCountInString(s.Payload.Message))
	return nil
}

func (n LogNotifier) NotifyNewsletter(ctx context.Context, s NewsletterSubmission) error {
	n.logger().InfoContext(ctx, "newsletter signup",
		"submission_id", s.ID,
		"client", s.Client)
	return nil
}

// MultiNotifier repassa para todos; os erros são juntados com errors.Join.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyContact(ctx context.Context, s ContactSubmission) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyContact(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiNotifier) NotifyNewsletter(ctx context.Context, s NewsletterSubmission) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyNewsletter(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
