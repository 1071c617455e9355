package forms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type WebhookConfig struct {
	URL   string
	Token string
	// Client é opcional; o padrão tem timeout de 10s.
	Client *http.Client
}

// WebhookNotifier inscreve os leitores da newsletter num provedor externo
// via POST JSON (formato Buttondown/ConvertKit). Contatos são ignorados.
type WebhookNotifier struct {
	url    string
	token  string
	client *http.Client
}

func NewWebhookNotifier(cfg WebhookConfig) (*WebhookNotifier, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("webhook: %w", ErrIncomplete)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, token: strings.TrimSpace(cfg.Token), client: client}, nil
}

type subscriberRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Notes     string `json:"notes"`
}

func (n *WebhookNotifier) NotifyContact(context.Context, ContactSubmission) error {
	return nil
}

func (n *WebhookNotifier) NotifyNewsletter(ctx context.Context, s NewsletterSubmission) error {
	body, err := json.Marshal(subscriberRequest{
		Email:     s.Payload.Email,
		FirstName: s.Payload.FirstName,
		Notes:     fmt.Sprintf("Name: %s, Signed up: %s", s.Payload.FirstName, s.ReceivedAt.UTC().Format(time.RFC3339)),
	})
	if err != nil {
		return fmt.Errorf("webhook encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Token "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook post: unexpected status %d", resp.StatusCode)
	}
	return nil
}
