package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rx3lixir/expense-dashboard/internal/config"
	"github.com/rx3lixir/expense-dashboard/internal/db"
	"github.com/rx3lixir/expense-dashboard/internal/gateway"
	"github.com/rx3lixir/expense-dashboard/internal/guard"
	"github.com/rx3lixir/expense-dashboard/internal/logger"
	"github.com/rx3lixir/expense-dashboard/internal/metrics"
	"github.com/rx3lixir/expense-dashboard/internal/notify"
	"github.com/rx3lixir/expense-dashboard/internal/session"
	"github.com/rx3lixir/expense-dashboard/pkg/health"
)

// ErrTabRequired redis хранилище без идентификатора вкладки бессмысленно
var ErrTabRequired = errors.New("tab id is required for the redis store")

// Options то, что зависит от способа запуска
type Options struct {
	// TabID пустой для memory хранилища значит новую вкладку
	TabID string
	// Out куда печатать уведомления и переходы, nil чтобы только логировать
	Out        io.Writer
	HTTPClient *http.Client
	Store      db.TokenStore
}

// App собранное ядро сессии одной вкладки
type App struct {
	Config    *config.AppConfig
	Log       logger.Logger
	TabID     string
	Store     db.TokenStore
	Gateway   *gateway.Gateway
	Session   *session.Session
	Router    *guard.Router
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Toaster   *notify.Toaster
	Navigator *notify.Redirector

	redisStore *db.RedisStore
}

// New собирает хранилище, шлюз, сессию и роутер. Сессия еще в Loading, Start вызывает хост
func New(ctx context.Context, c *config.AppConfig, log logger.Logger, opts Options) (*App, error) {
	if c == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	a := &App{
		Config:   c,
		TabID:    opts.TabID,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	if err := a.openStore(ctx, opts); err != nil {
		return nil, err
	}
	a.Log = log.With("tab_id", a.TabID)

	gw, err := gateway.New(a.Store, a.Log, gateway.Options{
		BaseURL:        c.API.BaseURL,
		Timeout:        c.API.GetRequestTimeout(),
		RefreshTimeout: c.API.GetRefreshTimeout(),
		DedupeRefresh:  c.API.DedupeRefresh,
		HTTPClient:     opts.HTTPClient,
		Metrics:        a.Metrics,
	})
	if err != nil {
		a.Store.Close()
		return nil, fmt.Errorf("create gateway: %w", err)
	}
	a.Gateway = gw

	a.Toaster = notify.NewToaster(opts.Out, a.Log)
	a.Navigator = notify.NewRedirector(opts.Out, a.Log)

	sess, err := session.New(a.Store, gw, a.Log, session.Options{
		LoginPath: c.Routes.LoginPath,
		Navigator: a.Navigator,
		Notifier:  a.Toaster,
		Metrics:   a.Metrics,
	})
	if err != nil {
		a.Store.Close()
		return nil, fmt.Errorf("create session: %w", err)
	}
	a.Session = sess
	gw.SetExpiryHandler(sess)

	a.Router = guard.NewRouter(guard.Paths{
		Login:        c.Routes.LoginPath,
		UserDefault:  c.Routes.UserDefaultPath,
		AdminDefault: c.Routes.AdminDefaultPath,
	}, guard.DefaultRoutes())

	a.Log.Info("Session core assembled",
		"store", c.Store.Driver,
		"api_base_url", c.API.BaseURL,
		"dedupe_refresh", c.API.DedupeRefresh,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, opts Options) error {
	if opts.Store != nil {
		a.Store = opts.Store
		if a.TabID == "" {
			a.TabID = uuid.NewString()
		}
		return nil
	}

	switch a.Config.Store.Driver {
	case "redis":
		if a.TabID == "" {
			return ErrTabRequired
		}
		rs, err := db.NewRedisStore(ctx, a.Config.Redis.RedisURL(), a.TabID, a.Config.Service.GetTabTTL())
		if err != nil {
			return fmt.Errorf("open redis store: %w", err)
		}
		a.redisStore = rs
		a.Store = rs
	default:
		if a.TabID == "" {
			a.TabID = uuid.NewString()
		}
		a.Store = db.NewMemoryStore()
	}
	return nil
}

// HealthCheckers проверки для health сервера
func (a *App) HealthCheckers() []health.Option {
	opts := []health.Option{
		health.WithChecker("api", health.APIChecker(nil, a.Config.API.BaseURL)),
		health.WithChecker("session", health.SessionChecker(func() (string, bool) {
			state := a.Session.Snapshot()
			return state.Status(), !state.Loading
		})),
	}
	if a.redisStore != nil {
		opts = append(opts, health.WithChecker("redis", health.RedisChecker(a.redisStore.Client())))
	}
	return opts
}

// Close освобождает хранилище. Токены в redis остаются до истечения TTL вкладки
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
