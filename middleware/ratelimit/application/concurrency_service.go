package application

import (
	"context"
	"time"

	"formguard/middleware/ratelimit/domain"
)

// ConcurrencyService limita quantos encaminhamentos (SMTP/webhook) rodam ao
// mesmo tempo, sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
// - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
// - Se `AcquireTimeout > 0`, espera até o timeout.
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}

// Do executa fn segurando uma vaga. Retorna domain.ErrNoSlot sem chamar fn
// quando a vaga não foi obtida.
func (s ConcurrencyService) Do(ctx context.Context, fn func(context.Context) error) error {
	release, ok := s.Acquire(ctx)
	if !ok {
		return domain.ErrNoSlot
	}
	defer release()
	return fn(ctx)
}
