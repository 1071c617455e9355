package infra

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"formguard/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// ShieldStore é o escudo grosso na frente de /api: um token bucket
// (x/time/rate) por IP, com cache por chave e limpeza periódica.
//
// Não conta submissões; quem garante o orçamento por formulário é a WindowStore.
type ShieldStore struct {
	mu           sync.Mutex
	entries      map[string]*shieldEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration

	wg sync.WaitGroup
}

type shieldEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type ShieldOption func(*ShieldStore)

func WithIdleTTL(d time.Duration) ShieldOption {
	return func(s *ShieldStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) ShieldOption {
	return func(s *ShieldStore) { s.cleanupEvery = d }
}

func NewShieldStore(rps float64, burst int, opts ...ShieldOption) *ShieldStore {
	s := &ShieldStore{
		entries:      make(map[string]*shieldEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ShieldStore) RPS() float64 { return float64(s.rps) }
func (s *ShieldStore) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *ShieldStore) Get(key domain.Key) domain.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[string(key)]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[string(key)] = &shieldEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *ShieldStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *ShieldStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
			cleaned++
		}
	}
	if cleaned > 0 {
		slog.Debug("shield cleanup completed", "cleaned_keys", cleaned, "remaining_keys", len(s.entries))
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto; Wait bloqueia até a goroutine sair.
func (s *ShieldStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

func (s *ShieldStore) Wait() { s.wg.Wait() }
