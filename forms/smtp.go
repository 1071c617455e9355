package forms

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
	FromAddr string
	// To recebe as mensagens do formulário de contato.
	To string
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// SMTPNotifier envia cada contato por e-mail. Inscrições na newsletter são
// ignoradas aqui (ver WebhookNotifier).
//
// A conversa SMTP inteira roda na goroutine do chamador, numa conexão presa
// ao ctx: quando NotifyContact retorna, não sobra conexão nem goroutine.
type SMTPNotifier struct {
	cfg  SMTPConfig
	dial dialFunc
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Port = strings.TrimSpace(cfg.Port)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.FromAddr = strings.TrimSpace(cfg.FromAddr)
	cfg.FromName = strings.TrimSpace(cfg.FromName)
	cfg.To = strings.TrimSpace(cfg.To)

	if cfg.Host == "" || cfg.Port == "" || cfg.FromAddr == "" || cfg.To == "" {
		return nil, fmt.Errorf("smtp: %w", ErrIncomplete)
	}
	return &SMTPNotifier{cfg: cfg, dial: (&net.Dialer{}).DialContext}, nil
}

func (n *SMTPNotifier) NotifyContact(ctx context.Context, s ContactSubmission) error {
	if err := n.send(ctx, []string{n.cfg.To}, n.contactMessage(s)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("smtp send: %w", ctxErr)
		}
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// send faz o mesmo que smtp.SendMail, mas quando o ctx termina (prazo ou
// cancelamento) a conexão recebe deadline imediato e a leitura ou escrita
// pendente falha.
func (n *SMTPNotifier) send(ctx context.Context, to []string, msg []byte) error {
	conn, err := n.dial(ctx, "tcp", net.JoinHostPort(n.cfg.Host, n.cfg.Port))
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		return err
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
			return err
		}
	}
	if n.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := c.Auth(smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)); err != nil {
			return err
		}
	}
	if err := c.Mail(n.cfg.FromAddr); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (n *SMTPNotifier) NotifyNewsletter(context.Context, NewsletterSubmission) error {
	return nil
}

func (n *SMTPNotifier) contactMessage(s ContactSubmission) []byte {
	p := s.Payload

	from := n.cfg.FromAddr
	if n.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", headerSafe(n.cfg.FromName), n.cfg.FromAddr)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Name: %s\n", p.Name)
	fmt.Fprintf(&body, "Email: %s\n", p.Email)
	if p.Company != "" {
		fmt.Fprintf(&body, "Company: %s\n", p.Company)
	}
	fmt.Fprintf(&body, "Subject: %s\n", p.Subject)
	fmt.Fprintf(&body, "Submission: %s (%s)\n\n", s.ID, s.ReceivedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	body.WriteString(p.Message)

	msg := strings.Join([]string{
		"From: " + from,
		"To: " + n.cfg.To,
		"Reply-To: " + headerSafe(p.Email),
		"Subject: " + headerSafe("New Contact: "+p.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		crlf(body.String()),
	}, "\r\n")
	return []byte(msg)
}

// crlf normaliza qualquer quebra de linha para CRLF sem duplicar \r.
func crlf(v string) string {
	v = strings.ReplaceAll(v, "\r\n", "\n")
	v = strings.ReplaceAll(v, "\r", "\n")
	return strings.ReplaceAll(v, "\n", "\r\n")
}

// headerSafe impede injeção de headers via CR/LF vindos do formulário.
func headerSafe(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
