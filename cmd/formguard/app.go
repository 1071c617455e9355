package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"formguard/config"
	"formguard/forms"
	"formguard/middleware/ratelimit"
	"formguard/middleware/ratelimit/application"
	"formguard/middleware/ratelimit/domain"
	"formguard/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// app segura as dependências montadas a partir da Config.
type app struct {
	handler http.Handler
	shield  *infra.ShieldStore
	rdb     *redis.Client
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	if cfg.RateStore == config.StoreRedis || cfg.StatsEnabled {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := a.rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = a.rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	var (
		windows    domain.WindowStore
		windowKeys func(context.Context) (int, error)
		gauges     forms.Gauges
	)
	switch cfg.RateStore {
	case config.StoreRedis:
		rs := infra.NewRedisWindowStore(a.rdb, infra.WithWindowPrefix(cfg.Redis.Prefix+":window"))
		windows = rs
		windowKeys = rs.Size
	default:
		ms := infra.NewWindowStore()
		windows = ms
		// sem tráfego a poda não roda; leituras podam antes de contar
		windowKeys = func(context.Context) (int, error) {
			ms.Prune(time.Now())
			return ms.Size(), nil
		}
		gauges.WindowKeys = func() float64 {
			ms.Prune(time.Now())
			return float64(ms.Size())
		}
		gauges.WindowEntries = func() float64 { return float64(ms.Entries()) }
	}

	if cfg.Shield.Enabled {
		a.shield = infra.NewShieldStore(cfg.Shield.RPS, cfg.Shield.Burst,
			infra.WithIdleTTL(cfg.Shield.IdleTTL),
			infra.WithCleanupEvery(cfg.Shield.CleanupEvery),
		)
		gauges.ShieldKeys = func() float64 { return float64(a.shield.Size()) }
	}

	forward := application.ConcurrencyService{AcquireTimeout: cfg.ConcurrencyTimeout}
	if cfg.ConcurrencyMax > 0 {
		pool := infra.NewChanPool(cfg.ConcurrencyMax)
		forward.Pool = pool
		gauges.ForwardSlotsInUse = func() float64 { return float64(pool.InUse()) }
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := forms.NewMetrics(reg, gauges)

	decisions := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.StatsTrackKeys))
	stats := infra.TeeStats{decisions, metrics}
	if cfg.StatsEnabled {
		stats = append(stats, infra.NewRedisStatsStore(
			a.rdb,
			infra.WithStatsPrefix(cfg.Redis.Prefix+":stats"),
			infra.WithStatsTTL(cfg.StatsTTL),
			infra.WithStatsBucket(cfg.StatsBucket),
			infra.WithStatsTrackKeys(cfg.StatsTrackKeys),
		))
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	h := forms.NewHandler(forms.HandlerOptions{
		Notifier:       notifier,
		Forward:        forward,
		ForwardTimeout: cfg.ForwardTimeout,
		Metrics:        metrics,
		Logger:         logger,
	})

	keyFn := ratelimit.DefaultKeyFunc(cfg.TrustProxyHeaders)
	guardOpts := forms.GuardOptions{
		Store:               windows,
		Stats:               stats,
		KeyFn:               keyFn,
		Logger:              logger,
		AddRateLimitHeaders: cfg.AddRateHeaders,
	}
	var guards forms.Guards
	if guards.Contact, err = forms.Guard(domain.EndpointContact, guardOpts); err != nil {
		a.Close()
		return nil, err
	}
	if guards.Newsletter, err = forms.Guard(domain.EndpointNewsletter, guardOpts); err != nil {
		a.Close()
		return nil, err
	}

	api := http.Handler(forms.Routes(h, guards))
	if a.shield != nil {
		api = ratelimit.Middleware(ratelimit.Options{
			Store:               a.shield,
			KeyFn:               keyFn,
			Reject:              forms.ShieldReject(),
			AddRateLimitHeaders: cfg.AddRateHeaders,
		})(api)
	}

	r := chi.NewRouter()
	r.Get("/healthz", healthHandler(windowKeys, decisions, logger))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount("/api", api)
	a.handler = r

	return a, nil
}

// newNotifier sempre loga; SMTP e webhook entram quando configurados.
func newNotifier(cfg config.Config, logger *slog.Logger) (forms.Notifier, error) {
	notifiers := forms.MultiNotifier{forms.LogNotifier{Logger: logger}}

	if cfg.SMTP.Enabled() {
		n, err := forms.NewSMTPNotifier(forms.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			FromName: cfg.SMTP.FromName,
			FromAddr: cfg.SMTP.FromAddr,
			To:       cfg.SMTP.To,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	if cfg.Newsletter.WebhookURL != "" {
		n, err := forms.NewWebhookNotifier(forms.WebhookConfig{
			URL:   cfg.Newsletter.WebhookURL,
			Token: cfg.Newsletter.WebhookToken,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	return notifiers, nil
}

func (a *app) Handler() http.Handler { return a.handler }

// Start liga o janitor do escudo; ele para quando ctx é cancelado.
func (a *app) Start(ctx context.Context) {
	if a.shield != nil {
		a.shield.StartJanitor(ctx)
	}
}

// Wait espera as goroutines de Start terminarem.
func (a *app) Wait() {
	if a.shield != nil {
		a.shield.Wait()
	}
}

func (a *app) Close() error {
	if a.rdb != nil {
		return a.rdb.Close()
	}
	return nil
}
