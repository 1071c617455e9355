package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"formguard/middleware/ratelimit/application"
	"formguard/middleware/ratelimit/domain"
)

// RejectFunc escreve a resposta de bloqueio. O Retry-After já foi setado.
type RejectFunc func(w http.ResponseWriter, r *http.Request, dec domain.Decision)

// ErrorFunc escreve a resposta quando a store falha (ex: Redis fora).
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

func defaultReject(w http.ResponseWriter, _ *http.Request, _ domain.Decision) {
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
}

func defaultError(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// WindowOptions configura a admissão por janela deslizante de um endpoint.
type WindowOptions struct {
	Store    domain.WindowStore
	Stats    domain.StatsStore
	Endpoint domain.Endpoint
	Policy   domain.Policy
	KeyFn    KeyFunc
	Reject   RejectFunc
	OnError  ErrorFunc
	Logger   *slog.Logger
	// Now permite injetar o relógio nos testes.
	Now                 func() time.Time
	AddRateLimitHeaders bool
}

// WindowMiddleware decide a admissão antes de qualquer leitura do body: se a
// chave do cliente já atingiu Policy.Max na janela, responde 429 sem chamar
// next. Quando admite, a tentativa já fica registrada.
func WindowMiddleware(opts WindowOptions) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = ClientAddress
	}
	if opts.Reject == nil {
		opts.Reject = defaultReject
	}
	if opts.OnError == nil {
		opts.OnError = defaultError
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	svc := application.Service{Store: opts.Store, Now: now}
	logger := opts.Logger.With("endpoint", string(opts.Endpoint))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := opts.KeyFn(r)
			key := domain.ClientKey(opts.Endpoint, addr)

			dec, err := svc.Decide(r.Context(), key, opts.Policy)
			if err != nil {
				logger.Error("rate limit check failed", "client", addr, "error", err)
				opts.OnError(w, r, err)
				return
			}

			if opts.Stats != nil {
				ev := domain.StatsEvent{
					Key:      key,
					Endpoint: opts.Endpoint,
					Allowed:  dec.Allowed,
					Method:   r.Method,
					Path:     r.URL.Path,
					At:       now(),
				}
				if err := opts.Stats.Record(r.Context(), ev); err != nil {
					logger.Warn("rate limit stats record failed", "error", err)
				}
			}

			if opts.AddRateLimitHeaders {
				remaining := opts.Policy.Max - dec.Count
				if remaining < 0 {
					remaining = 0
				}
				w.Header().Set("X-RateLimit-Limit", formatInt(opts.Policy.Max))
				w.Header().Set("X-RateLimit-Remaining", formatInt(remaining))
			}

			if !dec.Allowed {
				logger.Info("submission rate limited", "client", addr, "count", dec.Count, "retry_after", dec.RetryAfter)
				w.Header().Set("Retry-After", formatInt(RetryAfterSeconds(dec.RetryAfter)))
				opts.Reject(w, r, dec)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), addr)))
		})
	}
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// Options configura o escudo token-bucket (ver infra.ShieldStore).
type Options struct {
	Store               domain.LimiterStore
	KeyFn               KeyFunc
	Reject              RejectFunc
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

// Middleware é o escudo grosso por IP na frente de todas as rotas /api.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ClientAddress
	}
	if opts.Reject == nil {
		opts.Reject = defaultReject
	}

	svc := application.ShieldService{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-Shield-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-Shield-Burst", formatInt(ri.Burst()))
				}
			}

			dec := svc.Decide(domain.Key(key))
			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(RetryAfterSeconds(dec.RetryAfter)))
				opts.Reject(w, r, dec)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
