package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão.
//
// Observação: cuidado com cardinalidade ao persistir Key (um valor por IP).
type StatsEvent struct {
	Key      Key
	Endpoint Endpoint
	Allowed  bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// O middleware trata erro como best-effort (não derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
