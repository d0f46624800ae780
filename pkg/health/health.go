package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rx3lixir/expense-dashboard/internal/logger"
)

// Status состояние проверки
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// CheckResult результат одной проверки
type CheckResult struct {
	Status  Status         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Checker одна зависимость, которую надо проверить
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckerFunc позволяет использовать функцию как Checker
type CheckerFunc func(ctx context.Context) CheckResult

func (f CheckerFunc) Check(ctx context.Context) CheckResult {
	return f(ctx)
}

// Report ответ /health и /health/ready
type Report struct {
	Status    Status                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Server HTTP сервер проверок здоровья
type Server struct {
	serviceName string
	version     string
	port        string
	timeout     time.Duration
	log         logger.Logger

	mu       sync.RWMutex
	checkers map[string]Checker

	httpServer *http.Server
}

// Option настройка сервера
type Option func(*Server)

func WithServiceName(name string) Option {
	return func(s *Server) { s.serviceName = name }
}

func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

func WithPort(port string) Option {
	return func(s *Server) { s.port = port }
}

// WithTimeout общий лимит на все проверки одного запроса
func WithTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.timeout = timeout }
}

// WithChecker добавляет проверку под именем
func WithChecker(name string, checker Checker) Option {
	return func(s *Server) { s.checkers[name] = checker }
}

// NewServer создает сервер проверок
func NewServer(log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.NewNop()
	}

	s := &Server{
		serviceName: "expense-dashboard",
		version:     "dev",
		port:        ":8082",
		timeout:     5 * time.Second,
		log:         log.With("component", "health"),
		checkers:    make(map[string]Checker),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Register добавляет проверку после создания сервера
func (s *Server) Register(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
}

// Handler маршруты health
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLive)
	r.Get("/health/ready", s.handleHealth)
	return r
}

// Start блокируется до остановки сервера
func (s *Server) Start() error {
	s.log.Info("Health server is listening", "address", s.port)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Run выполняет все проверки параллельно
func (s *Server) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checkers))
	for name := range s.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]Checker, len(s.checkers))
	for name, c := range s.checkers {
		checkers[name] = c
	}
	s.mu.RUnlock()
	sort.Strings(names)

	results := make([]CheckResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			results[i] = c.Check(ctx)
		}(i, checkers[name])
	}
	wg.Wait()

	report := Report{
		Status:    StatusUp,
		Service:   s.serviceName,
		Version:   s.version,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckResult, len(names)),
	}
	for i, name := range names {
		res := results[i]
		report.Checks[name] = res

		switch res.Status {
		case StatusDown:
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Run(r.Context())

	code := http.StatusOK
	if report.Status == StatusDown {
		code = http.StatusServiceUnavailable
		s.log.Warn("health check failed", "checks", report.Checks)
	}
	writeJSON(w, code, report)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Report{
		Status:    StatusUp,
		Service:   s.serviceName,
		Version:   s.version,
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
