package domain

import (
	"context"
	"time"
)

// WindowStore guarda os timestamps das tentativas admitidas por chave.
//
// Admit é o único ponto de mutação: poda o que saiu da janela, conta,
// e registra `now` se ainda houver orçamento. Toda a sequência deve ser
// atômica em relação a outras chamadas concorrentes.
type WindowStore interface {
	Admit(ctx context.Context, key Key, p Policy, now time.Time) (Decision, error)
}
