package application

import (
	"context"
	"time"

	"formguard/middleware/ratelimit/domain"
)

const defaultRetryAfter = 1 * time.Second

// Service concentra a regra de admissão por janela deslizante.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store domain.WindowStore
	// Now permite injetar o relógio nos testes. Se nil, usa time.Now.
	Now func() time.Time
}

// Decide consulta e atualiza a janela da chave.
// Sem Store configurado, tudo é admitido.
func (s Service) Decide(ctx context.Context, key domain.Key, p domain.Policy) (domain.Decision, error) {
	if s.Store == nil {
		return domain.Decision{Allowed: true}, nil
	}
	if !p.Valid() {
		return domain.Decision{}, domain.ErrInvalidPolicy
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	dec, err := s.Store.Admit(ctx, key, p, now())
	if err != nil {
		return domain.Decision{}, err
	}
	if !dec.Allowed && dec.RetryAfter <= 0 {
		dec.RetryAfter = defaultRetryAfter
	}
	return dec, nil
}

// ShieldService é a decisão do escudo token-bucket (sem janela, sem contagem).
type ShieldService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s ShieldService) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = defaultRetryAfter
	}

	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: s.RetryAfter}
}
