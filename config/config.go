// Package config centraliza o carregamento das configurações do serviço.
//
// As políticas de rate limit dos formulários não são configuráveis; aqui ficam
// só servidor, stores, escudo, encaminhamento e provedores externos.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Chaves de ambiente reconhecidas.
const (
	KeyListenAddr         = "LISTEN_ADDR"
	KeyLogLevel           = "LOG_LEVEL"
	KeyLogFormat          = "LOG_FORMAT"
	KeyTrustProxyHeaders  = "TRUST_PROXY_HEADERS"
	KeyAddRateHeaders     = "ADD_RATELIMIT_HEADERS"
	KeyRateStore          = "RATE_STORE"
	KeyRedisAddr          = "REDIS_ADDR"
	KeyRedisPassword      = "REDIS_PASSWORD"
	KeyRedisDB            = "REDIS_DB"
	KeyRedisPrefix        = "REDIS_PREFIX"
	KeyRateStatsEnabled   = "RATE_STATS_ENABLED"
	KeyRateStatsTrackKeys = "RATE_STATS_TRACK_KEYS"
	KeyRateStatsTTL       = "RATE_STATS_TTL"
	KeyRateStatsBucket    = "RATE_STATS_BUCKET"
	KeyShieldEnabled      = "SHIELD_ENABLED"
	KeyShieldRPS          = "SHIELD_RPS"
	KeyShieldBurst        = "SHIELD_BURST"
	KeyShieldIdleTTL      = "SHIELD_IDLE_TTL"
	KeyShieldCleanup      = "SHIELD_CLEANUP_EVERY"
	KeyConcurrencyMax     = "CONCURRENCY_MAX"
	KeyConcurrencyTimeout = "CONCURRENCY_TIMEOUT"
	KeyForwardTimeout     = "FORWARD_TIMEOUT"
	KeySMTPHost           = "SMTP_HOST"
	KeySMTPPort           = "SMTP_PORT"
	KeySMTPUsername       = "SMTP_USERNAME"
	KeySMTPPassword       = "SMTP_PASSWORD"
	KeySMTPFromName       = "SMTP_FROM_NAME"
	KeySMTPFromAddr       = "SMTP_FROM_ADDR"
	KeyContactTo          = "CONTACT_TO"
	KeyNewsletterURL      = "NEWSLETTER_WEBHOOK_URL"
	KeyNewsletterToken    = "NEWSLETTER_WEBHOOK_TOKEN"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	ListenAddr string
	LogLevel   string
	LogFormat  string

	TrustProxyHeaders bool
	AddRateHeaders    bool

	RateStore      string
	Redis          RedisConfig
	StatsEnabled   bool
	StatsTrackKeys bool
	// StatsTTL e StatsBucket valem só para a store Redis.
	StatsTTL    time.Duration
	StatsBucket string

	Shield ShieldConfig

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration
	ForwardTimeout     time.Duration

	SMTP       SMTPConfig
	Newsletter NewsletterConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type ShieldConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
	// IdleTTL é quanto um bucket parado sobrevive; CleanupEvery <= 0
	// desliga o janitor.
	IdleTTL      time.Duration
	CleanupEvery time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
	FromAddr string
	To       string
}

// Enabled indica se alguma variável SMTP foi definida.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" || c.FromAddr != "" || c.To != ""
}

type NewsletterConfig struct {
	WebhookURL   string
	WebhookToken string
}

// Load lê o .env (se existir) e depois o ambiente do processo.
func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := FromEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv monta a Config a partir de uma função de lookup (os.LookupEnv em produção).
func FromEnv(lookup func(string) (string, bool)) Config {
	e := env{lookup: lookup}

	cfg := Config{
		ListenAddr:        e.str(KeyListenAddr, ":8080"),
		LogLevel:          strings.ToLower(e.str(KeyLogLevel, "info")),
		LogFormat:         strings.ToLower(e.str(KeyLogFormat, "json")),
		TrustProxyHeaders: e.bool(KeyTrustProxyHeaders, true),
		AddRateHeaders:    e.bool(KeyAddRateHeaders, false),

		RateStore: strings.ToLower(e.str(KeyRateStore, StoreMemory)),
		Redis: RedisConfig{
			Addr:     e.str(KeyRedisAddr, ""),
			Password: e.str(KeyRedisPassword, ""),
			DB:       e.int(KeyRedisDB, 0),
			Prefix:   e.str(KeyRedisPrefix, "formguard"),
		},
		StatsEnabled:   e.bool(KeyRateStatsEnabled, false),
		StatsTrackKeys: e.bool(KeyRateStatsTrackKeys, false),
		StatsTTL:       e.duration(KeyRateStatsTTL, 24*time.Hour),
		StatsBucket:    strings.ToLower(e.str(KeyRateStatsBucket, "minute")),

		Shield: ShieldConfig{
			Enabled: e.bool(KeyShieldEnabled, true),
			RPS:     e.float(KeyShieldRPS, 2),
			Burst:   e.int(KeyShieldBurst, 10),

			IdleTTL:      e.duration(KeyShieldIdleTTL, 15*time.Minute),
			CleanupEvery: e.duration(KeyShieldCleanup, 2*time.Minute),
		},

		ConcurrencyMax:     e.int(KeyConcurrencyMax, 20),
		ConcurrencyTimeout: e.duration(KeyConcurrencyTimeout, 5*time.Second),
		ForwardTimeout:     e.duration(KeyForwardTimeout, 10*time.Second),

		SMTP: SMTPConfig{
			Host:     e.str(KeySMTPHost, ""),
			Port:     e.str(KeySMTPPort, "587"),
			Username: e.str(KeySMTPUsername, ""),
			Password: e.str(KeySMTPPassword, ""),
			FromName: e.str(KeySMTPFromName, ""),
			FromAddr: e.str(KeySMTPFromAddr, ""),
			To:       e.str(KeyContactTo, ""),
		},
		Newsletter: NewsletterConfig{
			WebhookURL:   e.str(KeyNewsletterURL, ""),
			WebhookToken: e.str(KeyNewsletterToken, ""),
		},
	}
	return cfg
}

func (c Config) Validate() error {
	var errs []error

	switch c.RateStore {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when RATE_STORE=redis"))
		}
	default:
		errs = append(errs, errors.New("RATE_STORE must be memory or redis"))
	}
	if c.StatsEnabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when RATE_STATS_ENABLED=true"))
	}
	switch c.StatsBucket {
	case "minute", "none":
	default:
		errs = append(errs, errors.New("RATE_STATS_BUCKET must be minute or none"))
	}
	if c.StatsTTL < 0 {
		errs = append(errs, errors.New("RATE_STATS_TTL must be >= 0"))
	}
	if c.Shield.Enabled {
		if c.Shield.RPS <= 0 {
			errs = append(errs, errors.New("SHIELD_RPS must be > 0"))
		}
		if c.Shield.Burst <= 0 {
			errs = append(errs, errors.New("SHIELD_BURST must be > 0"))
		}
		if c.Shield.IdleTTL <= 0 {
			errs = append(errs, errors.New("SHIELD_IDLE_TTL must be > 0"))
		}
	}
	if c.ConcurrencyMax < 0 {
		errs = append(errs, errors.New("CONCURRENCY_MAX must be >= 0"))
	}
	if c.SMTP.Enabled() && (c.SMTP.Host == "" || c.SMTP.FromAddr == "" || c.SMTP.To == "") {
		errs = append(errs, errors.New("SMTP_HOST, SMTP_FROM_ADDR and CONTACT_TO must be set together"))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, errors.New("LOG_FORMAT must be json or text"))
	}
	return errors.Join(errs...)
}

// env lê valores com fallback; valores inválidos caem no padrão.
type env struct {
	lookup func(string) (string, bool)
}

func (e env) get(k string) (string, bool) {
	v, ok := e.lookup(k)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e env) str(k, def string) string {
	if v, ok := e.get(k); ok {
		return v
	}
	return def
}

func (e env) int(k string, def int) int {
	v, ok := e.get(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func (e env) float(k string, def float64) float64 {
	v, ok := e.get(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (e env) bool(k string, def bool) bool {
	v, ok := e.get(k)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (e env) duration(k string, def time.Duration) time.Duration {
	v, ok := e.get(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
