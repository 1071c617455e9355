package infra

import (
	"context"
	"sync"
	"time"

	"formguard/middleware/ratelimit/domain"
)

// WindowStore é a janela deslizante em memória, local ao processo.
//
// Cada chave guarda seus timestamps em ordem de chegada (deque). Toda chamada
// de Admit poda a store inteira antes de contar: entradas fora da janela
// somem de forma preguiçosa, sem goroutine de limpeza. Chaves de clientes que
// nunca voltam ficam até a próxima Admit de qualquer cliente.
//
// Não é compartilhada entre instâncias; para isso use RedisWindowStore.
type WindowStore struct {
	mu      sync.Mutex
	windows map[domain.Key]*window
}

type window struct {
	span   time.Duration
	stamps []time.Time
}

func NewWindowStore() *WindowStore {
	return &WindowStore{windows: make(map[domain.Key]*window)}
}

var _ domain.WindowStore = (*WindowStore)(nil)

// Admit implementa domain.WindowStore. Poda, contagem e inserção acontecem
// sob o mesmo lock.
func (s *WindowStore) Admit(_ context.Context, key domain.Key, p domain.Policy, now time.Time) (domain.Decision, error) {
	if !p.Valid() {
		return domain.Decision{}, domain.ErrInvalidPolicy
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)

	w, ok := s.windows[key]
	if !ok {
		w = &window{}
		s.windows[key] = w
	}
	// a política manda; a chave pode ter sido criada com outra janela
	w.span = p.Window
	w.trim(now.Add(-p.Window))

	if len(w.stamps) >= p.Max {
		return domain.Decision{
			Allowed:    false,
			Count:      len(w.stamps),
			RetryAfter: w.stamps[0].Add(p.Window).Sub(now),
		}, nil
	}

	w.stamps = append(w.stamps, now)
	return domain.Decision{Allowed: true, Count: len(w.stamps)}, nil
}

// Prune remove todos os timestamps anteriores ao início da janela de cada
// chave e descarta chaves vazias. Chamar duas vezes seguidas com o mesmo now
// não muda nada na segunda.
func (s *WindowStore) Prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
}

func (s *WindowStore) pruneLocked(now time.Time) {
	for k, w := range s.windows {
		w.trim(now.Add(-w.span))
		if len(w.stamps) == 0 {
			delete(s.windows, k)
		}
	}
}

// trim descarta do início tudo que for estritamente anterior a start.
func (w *window) trim(start time.Time) {
	i := 0
	for i < len(w.stamps) && w.stamps[i].Before(start) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.stamps, w.stamps[i:])
	w.stamps = w.stamps[:n]
}

// Size retorna o número de chaves com ao menos um timestamp.
func (s *WindowStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Entries retorna o total de timestamps guardados, somando todas as chaves.
func (s *WindowStore) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, w := range s.windows {
		total += len(w.stamps)
	}
	return total
}
