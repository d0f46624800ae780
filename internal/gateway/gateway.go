package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rx3lixir/expense-dashboard/internal/db"
	"github.com/rx3lixir/expense-dashboard/internal/logger"
	"github.com/rx3lixir/expense-dashboard/internal/metrics"
)

// Пути API, от которых зависит сессия
const (
	PathLogin        = "/auth/login"
	PathRegister     = "/auth/register"
	PathRefreshToken = "/auth/refresh-token"
	PathLogout       = "/auth/logout"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultRefreshTimeout = 10 * time.Second
)

// ExpiryHandler получает сигнал, что refresh не удался и хранилище уже очищено
type ExpiryHandler interface {
	HandleSessionExpired(ctx context.Context)
}

// RefreshHandler необязательное расширение ExpiryHandler:
// получает новый токен после успешного refresh, когда он уже в хранилище
type RefreshHandler interface {
	HandleTokenRefreshed(ctx context.Context, token string)
}

// Options параметры шлюза
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	RefreshTimeout time.Duration
	// DedupeRefresh одновременные 401 ждут один общий refresh
	DedupeRefresh bool
	// HTTPClient необязателен. Без cookie jar refresh-cookie сервера потеряется, поэтому jar добавляется
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Gateway выполняет запросы к API с токеном доступа и одной попыткой refresh на 401
type Gateway struct {
	baseURL        string
	httpClient     *http.Client
	store          db.TokenStore
	log            logger.Logger
	metrics        *metrics.Metrics
	refreshTimeout time.Duration
	dedupe         bool
	group          singleflight.Group

	mu        sync.RWMutex
	onExpired ExpiryHandler
}

// Response успешный ответ API
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode разбирает JSON тела в target
func (r *Response) Decode(target any) error {
	if err := json.Unmarshal(r.Body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// RequestOption настраивает отдельный запрос
type RequestOption func(*request)

// WithoutRefresh запрос не восстанавливается через refresh (логин, регистрация)
func WithoutRefresh() RequestOption {
	return func(r *request) {
		r.retried = true
	}
}

// WithHeader добавляет заголовок к запросу
func WithHeader(key, value string) RequestOption {
	return func(r *request) {
		r.header.Set(key, value)
	}
}

type request struct {
	method string
	path   string
	body   []byte
	header http.Header
	// retried ставится до refresh, так что запрос повторяется не больше одного раза
	retried bool
}

// New создает шлюз поверх хранилища токена
func New(store db.TokenStore, log logger.Logger, opts Options) (*Gateway, error) {
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client.Jar = jar
	}

	refreshTimeout := opts.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = defaultRefreshTimeout
	}

	return &Gateway{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		httpClient:     client,
		store:          store,
		log:            log.With("component", "gateway"),
		metrics:        opts.Metrics,
		refreshTimeout: refreshTimeout,
		dedupe:         opts.DedupeRefresh,
	}, nil
}

// SetExpiryHandler регистрирует получателя сигнала об истекшей сессии
func (g *Gateway) SetExpiryHandler(h ExpiryHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onExpired = h
}

// Get выполняет GET запрос
func (g *Gateway) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return g.Do(ctx, http.MethodGet, path, nil, opts...)
}

// Post выполняет POST запрос с JSON телом
func (g *Gateway) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return g.Do(ctx, http.MethodPost, path, body, opts...)
}

// Put выполняет PUT запрос
func (g *Gateway) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return g.Do(ctx, http.MethodPut, path, body, opts...)
}

// Delete выполняет DELETE запрос
func (g *Gateway) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return g.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// Do выполняет запрос. body типа []byte уходит как есть, остальное кодируется в JSON.
//
// На первый 401 делается один обмен refresh-токена и один повтор запроса.
// Если refresh не удался, хранилище очищается, ExpiryHandler получает сигнал,
// а вызывающий получает исходный 401 вместе с ErrSessionExpired.
func (g *Gateway) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	req := &request{
		method: method,
		path:   path,
		header: make(http.Header),
	}

	if body != nil {
		switch b := body.(type) {
		case []byte:
			req.body = b
		default:
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
			req.body = data
		}
		req.header.Set("Content-Type", "application/json")
	}

	for _, opt := range opts {
		opt(req)
	}

	return g.send(ctx, req)
}

func (g *Gateway) send(ctx context.Context, req *request) (*Response, error) {
	resp, err := g.exchange(ctx, req)
	if err == nil {
		return resp, nil
	}

	if req.retried || StatusCode(err) != http.StatusUnauthorized {
		return nil, err
	}

	req.retried = true
	g.log.Debug("access token rejected, refreshing", "method", req.method, "path", req.path)

	if refreshErr := g.refresh(ctx); refreshErr != nil {
		g.expire(ctx, refreshErr)
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	return g.exchange(ctx, req)
}

// exchange один HTTP обмен. Токен читается из хранилища в момент отправки
func (g *Gateway) exchange(ctx context.Context, req *request) (*Response, error) {
	url := g.baseURL + req.path

	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", "req_"+uuid.New().String()[:8])

	creds, ok, err := g.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	if ok {
		httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	}

	g.log.Debug("HTTP request", "method", req.method, "url", url, "retried", req.retried, "authorized", ok)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		g.metrics.ObserveRequest(req.method, 0)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	g.metrics.ObserveRequest(req.method, resp.StatusCode)
	g.log.Debug("HTTP response", "method", req.method, "url", url, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractMessage(respBody),
			Body:       respBody,
			Header:     resp.Header,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// refresh обменивает ambient refresh-cookie на новый токен доступа и сохраняет его
func (g *Gateway) refresh(ctx context.Context) error {
	if !g.dedupe {
		return g.refreshOnce(ctx)
	}

	// Общий refresh не должен падать из-за отмены контекста первого ожидающего
	_, err, shared := g.group.Do("refresh", func() (any, error) {
		return nil, g.refreshOnce(context.WithoutCancel(ctx))
	})
	if shared {
		g.log.Debug("joined in-flight token refresh")
	}
	return err
}

func (g *Gateway) refreshOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.refreshTimeout)
	defer cancel()

	resp, err := g.exchange(ctx, &request{
		method:  http.MethodPost,
		path:    PathRefreshToken,
		header:  make(http.Header),
		retried: true,
	})
	if err != nil {
		g.metrics.ObserveRefresh("failure")
		return fmt.Errorf("refresh token: %w", err)
	}

	var res db.RefreshTokenRes
	if err := resp.Decode(&res); err != nil {
		g.metrics.ObserveRefresh("failure")
		return err
	}
	if res.AccessToken == "" {
		g.metrics.ObserveRefresh("failure")
		return errors.New("refresh token: empty access token in response")
	}

	if err := g.store.SaveToken(ctx, res.AccessToken); err != nil {
		g.metrics.ObserveRefresh("failure")
		return fmt.Errorf("store refreshed token: %w", err)
	}

	g.metrics.ObserveRefresh("success")
	g.log.Info("access token refreshed")

	g.mu.RLock()
	handler, ok := g.onExpired.(RefreshHandler)
	g.mu.RUnlock()

	if ok {
		handler.HandleTokenRefreshed(ctx, res.AccessToken)
	}
	return nil
}

// expire чистит хранилище и синхронно сообщает сессии, до возврата ошибки вызывающему
func (g *Gateway) expire(ctx context.Context, cause error) {
	g.log.Warn("refresh token failed, ending session", "error", cause)

	if err := g.store.Clear(ctx); err != nil {
		g.log.Error("failed to clear token store", "error", err)
	}

	g.mu.RLock()
	handler := g.onExpired
	g.mu.RUnlock()

	if handler != nil {
		handler.HandleSessionExpired(ctx)
	}
}
