package infra

import (
	"context"
	"sync"

	"formguard/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStatsStore guarda as decisões em memória, por endpoint e
// (opcionalmente) por chave de cliente.
//
// Não faz expiração; com trackKeys ligado cresce um contador por IP.
type MemoryStatsStore struct {
	mu         sync.Mutex
	total      Counters
	byEndpoint map[domain.Endpoint]Counters
	byKey      map[domain.Key]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byEndpoint: make(map[domain.Endpoint]Counters),
		byKey:      make(map[domain.Key]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)

	c := s.byEndpoint[ev.Endpoint]
	c.add(ev.Allowed)
	s.byEndpoint[ev.Endpoint] = c

	if s.trackKeys {
		k := s.byKey[ev.Key]
		k.add(ev.Allowed)
		s.byKey[ev.Key] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByEndpoint() map[domain.Endpoint]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Endpoint]Counters, len(s.byEndpoint))
	for k, v := range s.byEndpoint {
		out[k] = v
	}
	return out
}

// TrackedKeys retorna quantos clientes têm contadores (0 sem WithTrackKeys).
func (s *MemoryStatsStore) TrackedKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

// TeeStats repassa cada evento para todas as stores. Retorna o primeiro erro,
// mas sempre tenta todas.
type TeeStats []domain.StatsStore

func (t TeeStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
