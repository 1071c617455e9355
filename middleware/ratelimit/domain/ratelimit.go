package domain

// Camada de domínio do rate limit dos formulários.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"strings"
	"time"
)

type Key string

// Endpoint identifica o formulário que está sendo protegido.
type Endpoint string

const (
	EndpointContact    Endpoint = "contact"
	EndpointNewsletter Endpoint = "newsletter"
)

// UnknownClient é usado quando nenhum header de origem foi enviado.
// Todos os clientes sem header compartilham o mesmo orçamento.
const UnknownClient = "unknown"

// ClientKey compõe a identidade usada para agrupar tentativas: endpoint + endereço.
//
// Observação: não é única nem confiável; depende dos headers do proxy e pode
// ser forjada pelo cliente.
func ClientKey(endpoint Endpoint, addr string) Key {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = UnknownClient
	}
	return Key(string(endpoint) + ":" + addr)
}

// Policy define a janela deslizante de um endpoint: no máximo Max tentativas
// admitidas dentro de qualquer intervalo de duração Window.
type Policy struct {
	Window time.Duration
	Max    int
}

func (p Policy) Valid() bool { return p.Window > 0 && p.Max > 0 }

// Políticas fixas por endpoint. Não são configuráveis em runtime.
var (
	ContactPolicy    = Policy{Window: 60 * time.Second, Max: 5}
	NewsletterPolicy = Policy{Window: 60 * time.Second, Max: 3}
)

// PolicyFor retorna a política do endpoint (ok=false se desconhecido).
func PolicyFor(e Endpoint) (Policy, bool) {
	switch e {
	case EndpointContact:
		return ContactPolicy, true
	case EndpointNewsletter:
		return NewsletterPolicy, true
	default:
		return Policy{}, false
	}
}

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// Usado pelo escudo token-bucket que fica na frente de /api.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: IP).
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// Count é o número de tentativas registradas na janela após a decisão.
	Count int
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
