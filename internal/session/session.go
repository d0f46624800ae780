package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rx3lixir/expense-dashboard/internal/db"
	"github.com/rx3lixir/expense-dashboard/internal/gateway"
	"github.com/rx3lixir/expense-dashboard/internal/logger"
	"github.com/rx3lixir/expense-dashboard/internal/metrics"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNoAccessToken  = errors.New("no access token in response")
)

// Сообщения для пользователя
const (
	msgLoginSuccess    = "Login Successful"
	msgLoginFailed     = "Login Failed"
	msgRegisterSuccess = "Registration Successful"
	msgRegisterFailed  = "Registration Failed"
	msgLoggedOut       = "Logged Out"
)

// Requester то, что сессии нужно от шлюза
type Requester interface {
	Post(ctx context.Context, path string, body any, opts ...gateway.RequestOption) (*gateway.Response, error)
}

// Navigator принимает сигнал перехода. Хост сам решает, перезагружать или мягко перейти
type Navigator interface {
	Navigate(path string)
}

// Notifier показывает пользователю короткие уведомления
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
}

// AuthError отказ логина или регистрации. Message уже готов для показа пользователю
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Options необязательные зависимости сессии
type Options struct {
	LoginPath string
	Navigator Navigator
	Notifier  Notifier
	Now       func() time.Time
	Metrics   *metrics.Metrics
}

// Session владеет состоянием аутентификации вкладки.
// Меняется только через Start, Login, Register, Logout и сигнал шлюза об истекшей сессии
type Session struct {
	store     db.TokenStore
	api       Requester
	log       logger.Logger
	navigator Navigator
	notifier  Notifier
	loginPath string
	nowFunc   func() time.Time
	validate  *validator.Validate
	metrics   *metrics.Metrics

	mu        sync.RWMutex
	state     State
	started   bool
	observers []func(State)
}

// New создает сессию в состоянии Loading
func New(store db.TokenStore, api Requester, log logger.Logger, opts Options) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if api == nil {
		return nil, fmt.Errorf("api requester is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &Session{
		store:     store,
		api:       api,
		log:       log.With("component", "session"),
		navigator: opts.Navigator,
		notifier:  opts.Notifier,
		loginPath: opts.LoginPath,
		nowFunc:   opts.Now,
		validate:  validator.New(),
		metrics:   opts.Metrics,
		state:     State{Loading: true},
	}
	if s.navigator == nil {
		s.navigator = nopNavigator{}
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.loginPath == "" {
		s.loginPath = "/login"
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}

	return s, nil
}

// Snapshot возвращает копию текущего состояния
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// OnChange регистрирует наблюдателя, который вызывается после каждого перехода
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start проверка при запуске. Выполняется один раз, до отрисовки защищенных страниц
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	creds, ok, err := s.store.Read(ctx)
	if err != nil {
		s.transition(unauthenticated())
		return fmt.Errorf("read token store: %w", err)
	}
	if !ok {
		s.transition(unauthenticated())
		return nil
	}

	claims, err := checkAccessToken(creds.AccessToken, s.nowFunc())
	if err != nil {
		s.log.Info("stored access token rejected", "reason", err)
		clearErr := s.store.Clear(ctx)
		s.transition(unauthenticated())
		if clearErr != nil {
			return fmt.Errorf("clear token store: %w", clearErr)
		}
		return nil
	}

	profile := creds.Profile
	if profile == nil {
		// Роль в токене не угадываем: без кэша профиль содержит только id
		profile = &db.Profile{Id: claims.subject()}
	}

	s.transition(State{
		User:            profile,
		AccessToken:     creds.AccessToken,
		IsAuthenticated: true,
	})
	return nil
}

// Login отправляет учетные данные и при успехе аутентифицирует вкладку
func (s *Session) Login(ctx context.Context, email, password string) (*db.Profile, error) {
	req := db.LoginUserReq{Email: email, Password: password}
	if err := s.validate.Struct(req); err != nil {
		return nil, s.authFailure(msgLoginFailed, fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}

	return s.authenticate(ctx, gateway.PathLogin, req, msgLoginSuccess, msgLoginFailed)
}

// Register регистрирует пользователя и сразу аутентифицирует его
func (s *Session) Register(ctx context.Context, name, email, password string) (*db.Profile, error) {
	req := db.RegisterUserReq{Name: name, Email: email, Password: password}
	if err := s.validate.Struct(req); err != nil {
		return nil, s.authFailure(msgRegisterFailed, fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}

	return s.authenticate(ctx, gateway.PathRegister, req, msgRegisterSuccess, msgRegisterFailed)
}

func (s *Session) authenticate(ctx context.Context, path string, body any, successMsg, failMsg string) (*db.Profile, error) {
	// Неверный пароль тоже 401, его нельзя лечить refresh-ем
	resp, err := s.api.Post(ctx, path, body, gateway.WithoutRefresh())
	if err != nil {
		return nil, s.authFailure(failMsg, err)
	}

	var res db.AuthRes
	if err := resp.Decode(&res); err != nil {
		return nil, s.authFailure(failMsg, err)
	}
	if res.AccessToken == "" {
		return nil, s.authFailure(failMsg, ErrNoAccessToken)
	}

	profile := res.Profile()
	if err := s.store.Save(ctx, res.AccessToken, profile); err != nil {
		return nil, s.authFailure(failMsg, fmt.Errorf("save credentials: %w", err))
	}

	s.transition(State{
		User:            profile,
		AccessToken:     res.AccessToken,
		IsAuthenticated: true,
	})
	s.notifier.Success(successMsg)
	s.log.Info("user authenticated", "user_id", profile.Id, "role", profile.Role)

	cp := *profile
	return &cp, nil
}

// authFailure состояние не трогает, сообщение сервера важнее общего
func (s *Session) authFailure(fallback string, err error) error {
	msg := gateway.ServerMessage(err)
	if msg == "" {
		msg = fallback
	}

	s.log.Warn("authentication failed", "error", err)
	s.notifier.Error(msg)

	return &AuthError{Message: msg, Err: err}
}

// Logout уведомляет сервер по возможности, но хранилище чистит всегда
func (s *Session) Logout(ctx context.Context) error {
	if _, err := s.api.Post(ctx, gateway.PathLogout, nil, gateway.WithoutRefresh()); err != nil {
		s.log.Warn("server logout failed, clearing session anyway", "error", err)
	}

	clearErr := s.store.Clear(ctx)
	if clearErr != nil {
		s.log.Error("failed to clear token store on logout", "error", clearErr)
	}

	s.transition(unauthenticated())
	s.notifier.Info(msgLoggedOut)
	s.navigator.Navigate(s.loginPath)

	if clearErr != nil {
		return fmt.Errorf("clear token store: %w", clearErr)
	}
	return nil
}

// HandleSessionExpired вызывается шлюзом, когда refresh не удался. Хранилище уже очищено
func (s *Session) HandleSessionExpired(ctx context.Context) {
	s.log.Info("session expired, redirecting to login")
	s.transition(unauthenticated())
	s.navigator.Navigate(s.loginPath)
}

// HandleTokenRefreshed вызывается шлюзом после успешного refresh.
// Статус не меняется, наблюдатели не уведомляются
func (s *Session) HandleTokenRefreshed(_ context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsAuthenticated {
		s.state.AccessToken = token
	}
}

func (s *Session) transition(next State) {
	s.mu.Lock()
	s.state = next.clone()
	snapshot := s.state.clone()
	observers := append([]func(State){}, s.observers...)
	s.mu.Unlock()

	s.metrics.ObserveTransition(snapshot.Status())
	s.log.Debug("session state changed", "state", snapshot.Status())

	for _, fn := range observers {
		fn(snapshot)
	}
}

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}
func (nopNotifier) Info(string)    {}
