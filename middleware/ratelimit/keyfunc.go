package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"formguard/middleware/ratelimit/domain"
)

// KeyFunc extrai o endereço do cliente da request.
type KeyFunc func(r *http.Request) string

// ClientAddress resolve o endereço usado no rate limit:
// primeiro valor do X-Forwarded-For, senão X-Real-IP, senão "unknown".
//
// Nenhum formato é validado; os headers podem ser forjados se o serviço não
// estiver atrás de um proxy que os sobrescreve.
func ClientAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return domain.UnknownClient
}

// DefaultKeyFunc usa os headers de proxy quando trustProxy=true; caso
// contrário usa o host de RemoteAddr.
func DefaultKeyFunc(trustProxy bool) KeyFunc {
	if trustProxy {
		return ClientAddress
	}
	return func(r *http.Request) string {
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return domain.UnknownClient
	}
}

type clientCtxKey struct{}

// WithClient guarda o endereço resolvido no contexto para os handlers.
func WithClient(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientCtxKey{}, addr)
}

// ClientFromContext devolve o endereço guardado por WithClient ("" se ausente).
func ClientFromContext(ctx context.Context) string {
	addr, _ := ctx.Value(clientCtxKey{}).(string)
	return addr
}
