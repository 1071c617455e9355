package forms

import (
	"fmt"
	"log/slog"
	"net/http"

	"formguard/middleware/ratelimit"
	"formguard/middleware/ratelimit/domain"
)

// GuardOptions é o que Guard precisa além do endpoint.
type GuardOptions struct {
	Store  domain.WindowStore
	Stats  domain.StatsStore
	KeyFn  ratelimit.KeyFunc
	Logger *slog.Logger
	// AddRateLimitHeaders expõe X-RateLimit-Limit/Remaining.
	AddRateLimitHeaders bool
}

// Guard monta o middleware de janela deslizante com a política fixa do
// endpoint e as respostas JSON dos formulários.
func Guard(endpoint domain.Endpoint, opts GuardOptions) (func(http.Handler) http.Handler, error) {
	policy, ok := domain.PolicyFor(endpoint)
	if !ok {
		return nil, fmt.Errorf("no rate limit policy for endpoint %q", endpoint)
	}
	return ratelimit.WindowMiddleware(ratelimit.WindowOptions{
		Store:               opts.Store,
		Stats:               opts.Stats,
		Endpoint:            endpoint,
		Policy:              policy,
		KeyFn:               opts.KeyFn,
		Reject:              RateLimitReject(endpoint),
		OnError:             InternalError,
		Logger:              opts.Logger,
		AddRateLimitHeaders: opts.AddRateLimitHeaders,
	}), nil
}
