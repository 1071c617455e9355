package ratelimit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"formguard/middleware/ratelimit/domain"
	"formguard/middleware/ratelimit/infra"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func post(h http.Handler, ip string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "http://example/api/contact", nil)
	r.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestWindowMiddleware_AllowsThenRejectsSameClient(t *testing.T) {
	clock := newClock()
	stats := infra.NewMemoryStatsStore()

	calls := 0
	var seenClient string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		seenClient = ClientFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := WindowMiddleware(WindowOptions{
		Store:               infra.NewWindowStore(),
		Stats:               stats,
		Endpoint:            domain.EndpointContact,
		Policy:              domain.Policy{Window: time.Minute, Max: 2},
		Now:                 clock.Now,
		AddRateLimitHeaders: true,
	})(next)

	for i := 0; i < 2; i++ {
		w := post(h, "1.2.3.4")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 on attempt %d, got %d", i+1, w.Code)
		}
		clock.Advance(time.Second)
	}
	if seenClient != "1.2.3.4" {
		t.Fatalf("expected client in context, got %q", seenClient)
	}

	w := post(h, "1.2.3.4")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	// primeira tentativa em t0, agora t0+2s: faltam 58s
	if got := w.Header().Get("Retry-After"); got != "58" {
		t.Fatalf("expected Retry-After=58, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected X-RateLimit-Remaining=0, got %q", got)
	}
	if calls != 2 {
		t.Fatalf("expected next handler to be called twice, got %d", calls)
	}
	if got := stats.Total(); got.Allowed != 2 || got.Denied != 1 {
		t.Fatalf("unexpected stats %+v", got)
	}
}

func TestWindowMiddleware_DifferentClientsHaveOwnBudget(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := WindowMiddleware(WindowOptions{
		Store:    infra.NewWindowStore(),
		Endpoint: domain.EndpointNewsletter,
		Policy:   domain.Policy{Window: time.Minute, Max: 1},
	})(next)

	if w := post(h, "1.1.1.1"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for first client, got %d", w.Code)
	}
	if w := post(h, "2.2.2.2"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for second client, got %d", w.Code)
	}
	if w := post(h, "1.1.1.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for first client, got %d", w.Code)
	}
}

func TestWindowMiddleware_UsesCustomReject(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := WindowMiddleware(WindowOptions{
		Store:    infra.NewWindowStore(),
		Endpoint: domain.EndpointContact,
		Policy:   domain.Policy{Window: time.Minute, Max: 1},
		Reject: func(w http.ResponseWriter, r *http.Request, dec domain.Decision) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, "slow down")
		},
	})(next)

	post(h, "1.2.3.4")
	w := post(h, "1.2.3.4")
	if w.Code != http.StatusTooManyRequests || strings.TrimSpace(w.Body.String()) != "slow down" {
		t.Fatalf("expected custom rejection, got %d %q", w.Code, w.Body.String())
	}
}

type brokenStore struct{}

func (brokenStore) Admit(context.Context, domain.Key, domain.Policy, time.Time) (domain.Decision, error) {
	return domain.Decision{}, errors.New("redis down")
}

func TestWindowMiddleware_StoreErrorUsesOnError(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	h := WindowMiddleware(WindowOptions{
		Store:    brokenStore{},
		Endpoint: domain.EndpointContact,
		Policy:   domain.ContactPolicy,
	})(next)

	w := post(h, "1.2.3.4")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if calls != 0 {
		t.Fatalf("next must not run when the store fails")
	}
}

func TestMiddleware_ShieldAllowsThenRejectsSameKey(t *testing.T) {
	store := infra.NewShieldStore(0.02, 1)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:               store,
		RetryAfter:          2500 * time.Millisecond,
		AddRateLimitHeaders: true,
	})(next)

	w1 := post(h, "10.0.0.1")
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-Shield-Burst"); got != "1" {
		t.Fatalf("expected X-Shield-Burst=1, got %q", got)
	}

	w2 := post(h, "10.0.0.1")
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "3" {
		// 2.5s arredonda para cima
		t.Fatalf("expected Retry-After=3, got %q", got)
	}
	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := map[time.Duration]int{
		0:                       1,
		-time.Second:            1,
		300 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		58 * time.Second:        58,
	}
	for in, want := range cases {
		if got := RetryAfterSeconds(in); got != want {
			t.Fatalf("RetryAfterSeconds(%s) = %d, want %d", in, got, want)
		}
	}
}
