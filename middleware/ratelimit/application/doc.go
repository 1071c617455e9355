// Package application contém os casos de uso do rate limit: admissão por
// janela deslizante, escudo token-bucket e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key, policy) retorna uma Decision (allow/deny + retry-after).
package application
