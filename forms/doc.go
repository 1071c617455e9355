// Package forms implementa as rotas de formulário (contato e newsletter):
// resposta JSON, honeypot, validação agregada por campo e encaminhamento
// para um Notifier. O rate limit vem de middleware/ratelimit via Guard.
//
// Ordem por request: rate limit, parse, honeypot, validação, encaminhamento.
package forms
