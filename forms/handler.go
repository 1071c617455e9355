package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"formguard/middleware/ratelimit"
	"formguard/middleware/ratelimit/application"
	"formguard/middleware/ratelimit/domain"

	"github.com/google/uuid"
)

const (
	maxBodyBytes          = 64 << 10
	defaultForwardTimeout = 10 * time.Second
)

type HandlerOptions struct {
	Notifier Notifier
	// Forward limita encaminhamentos simultâneos; zero value não limita.
	Forward        application.ConcurrencyService
	ForwardTimeout time.Duration
	Metrics        *Metrics
	Logger         *slog.Logger
	Now            func() time.Time
	NewID          func() string
}

// Handler executa, depois do rate limit, as etapas de cada formulário:
// parse, honeypot, validação e encaminhamento.
type Handler struct {
	validator      *Validator
	notifier       Notifier
	forward        application.ConcurrencyService
	forwardTimeout time.Duration
	metrics        *Metrics
	logger         *slog.Logger
	now            func() time.Time
	newID          func() string
}

func NewHandler(opts HandlerOptions) *Handler {
	h := &Handler{
		validator:      NewValidator(),
		notifier:       opts.Notifier,
		forward:        opts.Forward,
		forwardTimeout: opts.ForwardTimeout,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		now:            opts.Now,
		newID:          opts.NewID,
	}
	if h.notifier == nil {
		h.notifier = LogNotifier{Logger: opts.Logger}
	}
	if h.forwardTimeout <= 0 {
		h.forwardTimeout = defaultForwardTimeout
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.newID == nil {
		h.newID = uuid.NewString
	}
	return h
}

// Contact trata POST /api/contact.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	handle(h, w, r, form[ContactPayload]{
		endpoint: domain.EndpointContact,
		honeypot: func(p *ContactPayload) string { return p.Honeypot },
		forward: func(ctx context.Context, sub Submission, p *ContactPayload) error {
			return h.notifier.NotifyContact(ctx, ContactSubmission{Submission: sub, Payload: *p})
		},
		success: func(*ContactPayload) string { return msgContactSuccess },
	})
}

// Newsletter trata POST /api/newsletter.
func (h *Handler) Newsletter(w http.ResponseWriter, r *http.Request) {
	handle(h, w, r, form[NewsletterPayload]{
		endpoint: domain.EndpointNewsletter,
		honeypot: func(p *NewsletterPayload) string { return p.Honeypot },
		forward: func(ctx context.Context, sub Submission, p *NewsletterPayload) error {
			return h.notifier.NotifyNewsletter(ctx, NewsletterSubmission{Submission: sub, Payload: *p})
		},
		success: func(p *NewsletterPayload) string { return fmt.Sprintf(msgNewsletterSuccess, p.FirstName) },
	})
}

type form[T any] struct {
	endpoint domain.Endpoint
	honeypot func(*T) string
	forward  func(context.Context, Submission, *T) error
	success  func(*T) string
}

func handle[T any](h *Handler, w http.ResponseWriter, r *http.Request, f form[T]) {
	client := ratelimit.ClientFromContext(r.Context())
	if client == "" {
		client = ratelimit.ClientAddress(r)
	}
	logger := h.logger.With("endpoint", string(f.endpoint), "client", client)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("form handler panic", "panic", rec)
			h.metrics.submission(f.endpoint, OutcomeInternalError)
			InternalError(w, r, nil)
		}
	}()

	var payload T
	if err := decodeBody(w, r, &payload); err != nil {
		logger.Info("rejected form body", "error", err)
		h.metrics.submission(f.endpoint, OutcomeInvalidBody)
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: msgInvalidBody})
		return
	}

	if HoneypotTripped(f.honeypot(&payload)) {
		logger.Info("honeypot tripped, dropping submission")
		h.metrics.submission(f.endpoint, OutcomeHoneypot)
		writeJSON(w, http.StatusOK, Response{Success: true})
		return
	}

	if err := h.validator.Validate(&payload); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			h.metrics.submission(f.endpoint, OutcomeValidationFailed)
			writeJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Error:   msgValidationFailed,
				Details: ve.Fields,
			})
			return
		}
		logger.Error("validator failed", "error", err)
		h.metrics.submission(f.endpoint, OutcomeInternalError)
		InternalError(w, r, err)
		return
	}

	sub := Submission{ID: h.newID(), ReceivedAt: h.now(), Client: client}
	logger = logger.With("submission_id", sub.ID)

	start := time.Now()
	err := h.forward.Do(r.Context(), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, h.forwardTimeout)
		defer cancel()
		return f.forward(ctx, sub, &payload)
	})
	h.metrics.forwarded(f.endpoint, time.Since(start).Seconds())
	if err != nil {
		logger.Error("forwarding submission failed", "error", err)
		h.metrics.submission(f.endpoint, OutcomeInternalError)
		InternalError(w, r, err)
		return
	}

	logger.Info("submission accepted")
	h.metrics.submission(f.endpoint, OutcomeSuccess)
	writeJSON(w, http.StatusOK, Response{Success: true, Message: f.success(&payload)})
}

// decodeBody aceita um único objeto JSON de até maxBodyBytes.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after object", ErrInvalidBody)
	}
	return nil
}
