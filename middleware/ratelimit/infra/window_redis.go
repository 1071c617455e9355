package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"formguard/middleware/ratelimit/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// admitScript faz poda, contagem e inserção numa única execução no Redis,
// o que mantém o limite válido entre várias instâncias do serviço.
//
// KEYS[1] = sorted set da chave; ARGV = now_ms, window_ms, max, member.
// Retorna {allowed, count, oldest_ms}.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - window))
local count = redis.call('ZCARD', key)
if count >= max then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, count, tonumber(oldest[2])}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, 0}
`)

// RedisWindowStore é a janela deslizante compartilhada, um sorted set por chave
// com score em milissegundos. A expiração da chave substitui a poda global.
type RedisWindowStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func NewRedisWindowStore(rdb *redis.Client, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:    rdb,
		prefix: "formguard:window",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.WindowStore = (*RedisWindowStore)(nil)

func (s *RedisWindowStore) Admit(ctx context.Context, key domain.Key, p domain.Policy, now time.Time) (domain.Decision, error) {
	if !p.Valid() {
		return domain.Decision{}, domain.ErrInvalidPolicy
	}

	nowMs := now.UnixMilli()
	windowMs := p.Window.Milliseconds()
	// membro único mesmo com duas tentativas no mesmo milissegundo
	member := fmt.Sprintf("%s:%d:%s", key, nowMs, uuid.NewString())

	res, err := admitScript.Run(ctx, s.rdb, []string{s.redisKey(key)}, nowMs, windowMs, p.Max, member).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("redis admit: %w", err)
	}
	if len(res) != 3 {
		return domain.Decision{}, fmt.Errorf("redis admit: unexpected reply length %d", len(res))
	}

	dec := domain.Decision{Allowed: res[0] == 1, Count: int(res[1])}
	if !dec.Allowed {
		dec.RetryAfter = time.Duration(res[2]+windowMs-nowMs) * time.Millisecond
	}
	return dec, nil
}

// Size conta as chaves de janela ativas (SCAN; uso em health/métricas).
func (s *RedisWindowStore) Size(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+":*", 100).Result()
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func (s *RedisWindowStore) redisKey(key domain.Key) string {
	return s.prefix + ":" + string(key)
}
