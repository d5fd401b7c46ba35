package cli

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"pft/internal/api"
	"pft/internal/apperr"
	"pft/internal/auth"
	"pft/internal/cache"
	"pft/internal/client"
	"pft/internal/config"
	"pft/internal/events"
	"pft/internal/finance"
	"pft/internal/log"
	"pft/internal/metrics"
	"pft/internal/tokenstore"
)

// App is everything a command needs, built once per process.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Tokens    *tokenstore.Store
	Client    *client.Client
	API       *api.HTTP
	Session   *auth.Session
	Cache     *cache.Cache
	Finance   *finance.Service
	Publisher events.Publisher

	cleaner *cache.Manager
	closers []func() error
}

// NewApp opens durable state and assembles the client stack on top of it.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Registry:  prometheus.NewRegistry(),
		Publisher: events.Nop{},
	}
	a.Metrics = metrics.New(a.Registry)

	state, err := InitState(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, state.Cleanup)

	a.Tokens = tokenstore.New(state.Durable, logger)
	a.Client, err = client.New(client.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.HTTPTimeout,
		Cookies: state.Durable,
		Logger:  logger,
		Metrics: a.Metrics,
	}, a.Tokens)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.API = api.NewHTTP(a.Client)

	if cfg.AMQPURL != "" {
		pub := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		a.Publisher = pub
		a.closers = append(a.closers, pub.Close)
	}

	a.Cache = cache.New(cache.Options{
		MaxEntries: cfg.CacheMaxEntries,
		GCTime:     cfg.CacheGCTime,
		Logger:     logger,
		Metrics:    a.Metrics,
	})
	a.cleaner = cache.NewManager(logger)
	a.cleaner.Register(a.Cache)
	a.cleaner.StartCleanup(cfg.CacheGCTime)

	a.Finance = finance.New(a.API, a.Cache, finance.Options{
		Stale: finance.StaleTimes{
			Transactions: cfg.Stale.Transactions,
			Categories:   cfg.Stale.Categories,
			Budgets:      cfg.Stale.Budgets,
			Dashboard:    cfg.Stale.Dashboard,
			Reports:      cfg.Stale.Reports,
		},
		Logger:    logger,
		Metrics:   a.Metrics,
		Publisher: a.Publisher,
	})

	a.Session = auth.New(a.API, a.Client, a.Tokens, logger)
	a.Session.OnLogout(a.Finance.Clear)

	return a, nil
}

// RequireUser settles the session and fails unless someone is signed in.
func (a *App) RequireUser(ctx context.Context, dest string) error {
	a.Session.Start(ctx)
	switch d := a.Session.Guard(dest); d.Action {
	case auth.ActionAllow:
		return nil
	case auth.ActionRedirect:
		return apperr.Auth(dest, errors.New("not signed in, run 'pft login' first"))
	default:
		return errors.New("session not settled")
	}
}

// Close stops background work and releases durable state.
func (a *App) Close() error {
	if a.cleaner != nil {
		a.cleaner.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
