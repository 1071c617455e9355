package forms

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func testSMTPConfig() SMTPConfig {
	return SMTPConfig{
		Host:     "smtp.example.com",
		Port:     "587",
		FromName: "Website",
		FromAddr: "noreply@example.com",
		To:       "team@example.com",
	}
}

func testContactSubmission() ContactSubmission {
	return ContactSubmission{
		Submission: Submission{ID: "sub-1", ReceivedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), Client: "1.2.3.4"},
		Payload: ContactPayload{
			Name:    "Ada",
			Email:   "ada@example.com",
			Subject: "Hello\r\nBcc: victim@example.com",
			Message: "line one\nline two",
		},
	}
}

// smtpSession guarda o que o servidor falso recebeu.
type smtpSession struct {
	addr string
	from string
	to   []string
	data string
}

// fakeSMTP responde a conversa mínima (EHLO, MAIL, RCPT, DATA, QUIT) do
// outro lado de um net.Pipe.
func fakeSMTP(wg *sync.WaitGroup, got *smtpSession) dialFunc {
	return func(_ context.Context, _ string, addr string) (net.Conn, error) {
		got.addr = addr
		client, server := net.Pipe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer server.Close()
			serveSMTP(textproto.NewConn(server), got)
		}()
		return client, nil
	}
}

func serveSMTP(tp *textproto.Conn, got *smtpSession) {
	if tp.PrintfLine("220 fake ESMTP") != nil {
		return
	}
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			_ = tp.PrintfLine("250 fake")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			got.from = strings.Trim(line[len("MAIL FROM:"):], "<>")
			_ = tp.PrintfLine("250 ok")
		case strings.HasPrefix(upper, "RCPT TO:"):
			got.to = append(got.to, strings.Trim(line[len("RCPT TO:"):], "<>"))
			_ = tp.PrintfLine("250 ok")
		case upper == "DATA":
			_ = tp.PrintfLine("354 go ahead")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			got.data = string(data)
			_ = tp.PrintfLine("250 queued")
		case upper == "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func TestNewSMTPNotifier_RequiresCoreFields(t *testing.T) {
	cfg := testSMTPConfig()
	cfg.To = " "
	if _, err := NewSMTPNotifier(cfg); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestSMTPNotifier_SendsContactMail(t *testing.T) {
	defer goleak.VerifyNone(t)

	n, err := NewSMTPNotifier(testSMTPConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var (
		wg  sync.WaitGroup
		got smtpSession
	)
	n.dial = fakeSMTP(&wg, &got)

	if err := n.NotifyContact(context.Background(), testContactSubmission()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wg.Wait()

	if got.addr != "smtp.example.com:587" || got.from != "noreply@example.com" {
		t.Fatalf("unexpected envelope addr=%q from=%q", got.addr, got.from)
	}
	if len(got.to) != 1 || got.to[0] != "team@example.com" {
		t.Fatalf("unexpected recipients %v", got.to)
	}
	// ReadDotBytes devolve as linhas com \n
	if !strings.Contains(got.data, "From: Website <noreply@example.com>\n") {
		t.Fatalf("missing From header in %q", got.data)
	}
	if !strings.Contains(got.data, "Reply-To: ada@example.com\n") {
		t.Fatalf("missing Reply-To header in %q", got.data)
	}
	if strings.Contains(got.data, "\nBcc:") {
		t.Fatalf("subject allowed header injection: %q", got.data)
	}
	if !strings.Contains(got.data, "line one\nline two") {
		t.Fatalf("unexpected body %q", got.data)
	}
}

func TestSMTPNotifier_WrapsDialError(t *testing.T) {
	n, _ := NewSMTPNotifier(testSMTPConfig())
	n.dial = func(context.Context, string, string) (net.Conn, error) { return nil, errors.New("refused") }

	err := n.NotifyContact(context.Background(), testContactSubmission())
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("expected wrapped dial error, got %v", err)
	}
}

// stalledDial aceita a conexão e nunca responde.
func stalledDial(wg *sync.WaitGroup) dialFunc {
	return func(context.Context, string, string) (net.Conn, error) {
		client, server := net.Pipe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = io.Copy(io.Discard, server)
			_ = server.Close()
		}()
		return client, nil
	}
}

func TestSMTPNotifier_StalledServerStopsAtDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	n, _ := NewSMTPNotifier(testSMTPConfig())
	var wg sync.WaitGroup
	n.dial = stalledDial(&wg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := n.NotifyContact(ctx, testContactSubmission()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	// a conexão foi fechada: o lado do servidor termina
	wg.Wait()
}

func TestSMTPNotifier_StalledServerStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	n, _ := NewSMTPNotifier(testSMTPConfig())
	var wg sync.WaitGroup
	n.dial = stalledDial(&wg)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(20*time.Millisecond, cancel)
	defer timer.Stop()

	if err := n.NotifyContact(ctx, testContactSubmission()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
	wg.Wait()
}

func TestSMTPNotifier_AuthRequiresServerSupport(t *testing.T) {
	cfg := testSMTPConfig()
	cfg.Username = "mailer"
	cfg.Password = "secret"
	n, _ := NewSMTPNotifier(cfg)
	var (
		wg  sync.WaitGroup
		got smtpSession
	)
	n.dial = fakeSMTP(&wg, &got)

	err := n.NotifyContact(context.Background(), testContactSubmission())
	if err == nil || !strings.Contains(err.Error(), "AUTH") {
		t.Fatalf("expected AUTH error, got %v", err)
	}
	wg.Wait()
	if got.from != "" {
		t.Fatalf("mail must not be sent without auth")
	}
}

func TestContactMessage_NormalisesLineEndings(t *testing.T) {
	n, _ := NewSMTPNotifier(testSMTPConfig())
	s := testContactSubmission()
	s.Payload.Message = "crlf\r\nlf\nbare cr\rend"

	msg := string(n.contactMessage(s))
	if strings.Contains(msg, "\r\r\n") {
		t.Fatalf("message has doubled CR: %q", msg)
	}
	if !strings.HasSuffix(msg, "crlf\r\nlf\r\nbare cr\r\nend") {
		t.Fatalf("expected CRLF body, got %q", msg)
	}
	if strings.Count(msg, "\n") != strings.Count(msg, "\r\n") {
		t.Fatalf("found a bare LF in %q", msg)
	}
}

func TestSMTPNotifier_IgnoresNewsletter(t *testing.T) {
	n, _ := NewSMTPNotifier(testSMTPConfig())
	n.dial = func(context.Context, string, string) (net.Conn, error) {
		t.Fatalf("newsletter signups must not be mailed")
		return nil, nil
	}
	if err := n.NotifyNewsletter(context.Background(), NewsletterSubmission{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
