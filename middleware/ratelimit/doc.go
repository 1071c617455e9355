// Package ratelimit fornece adapters HTTP (net/http) para o rate limit dos formulários.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (admissão por janela, escudo, vagas de encaminhamento)
//   - infra: implementações concretas (janela em memória/Redis, token bucket, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + resolução do cliente + tradução para status/headers
//
// Fluxo por formulário:
//
//   1) Resolve o endereço do cliente (X-Forwarded-For, X-Real-IP, "unknown")
//   2) Chama a camada application para admitir e registrar a tentativa
//   3) Se bloqueado, responde 429 com Retry-After
//   4) Se admitido, chama o handler do formulário
package ratelimit
