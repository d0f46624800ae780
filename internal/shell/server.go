package shell

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rx3lixir/expense-dashboard/internal/db"
	"github.com/rx3lixir/expense-dashboard/internal/gateway"
	"github.com/rx3lixir/expense-dashboard/internal/guard"
	"github.com/rx3lixir/expense-dashboard/internal/logger"
	"github.com/rx3lixir/expense-dashboard/internal/session"
)

// maxBodyBytes лимит тела запроса к оболочке
const maxBodyBytes = 1 << 20

// Session то, что оболочке нужно от сессии
type Session interface {
	Snapshot() session.State
	Login(ctx context.Context, email, password string) (*db.Profile, error)
	Register(ctx context.Context, name, email, password string) (*db.Profile, error)
	Logout(ctx context.Context) error
}

// API шлюз к удаленному API
type API interface {
	Do(ctx context.Context, method, path string, body any, opts ...gateway.RequestOption) (*gateway.Response, error)
}

// Deps зависимости оболочки
type Deps struct {
	Session  Session
	Router   *guard.Router
	API      API
	Gatherer prometheus.Gatherer
	Log      logger.Logger
	// Addr адрес для Start
	Addr string
}

// Server локальная HTTP оболочка вкладки: состояние сессии, решения охранника и проксирование API
type Server struct {
	session  Session
	router   *guard.Router
	api      API
	gatherer prometheus.Gatherer
	log      logger.Logger

	mux        chi.Router
	httpServer *http.Server
}

// New создает оболочку и настраивает маршруты
func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}

	s := &Server{
		session:  deps.Session,
		router:   deps.Router,
		api:      deps.API,
		gatherer: deps.Gatherer,
		log:      log.With("component", "shell"),
		mux:      chi.NewRouter(),
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:              deps.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	r := s.mux

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log))

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.handleSession)
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.Post("/logout", s.handleLogout)
	})

	r.Get("/pages", s.handlePage)
	r.Get("/pages/*", s.handlePage)

	r.HandleFunc("/api/*", s.handleAPI)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler корневой обработчик, удобно для тестов
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start слушает Deps.Addr до Shutdown
func (s *Server) Start() error {
	s.log.Info("Shell is listening", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
