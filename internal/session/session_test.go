package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rx3lixir/expense-dashboard/internal/db"
	"github.com/rx3lixir/expense-dashboard/internal/gateway"
	"github.com/rx3lixir/expense-dashboard/internal/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) add(kind, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, kind+": "+msg)
}

func (n *recordingNotifier) Success(msg string) { n.add("success", msg) }
func (n *recordingNotifier) Error(msg string)   { n.add("error", msg) }
func (n *recordingNotifier) Info(msg string)    { n.add("info", msg) }

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type harness struct {
	session   *Session
	gateway   *gateway.Gateway
	store     *db.MemoryStore
	navigator *recordingNavigator
	notifier  *recordingNotifier
}

func newHarness(t *testing.T, api http.Handler) *harness {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	store := db.NewMemoryStore()
	gw, err := gateway.New(store, logger.NewNop(), gateway.Options{
		BaseURL:        srv.URL + "/api",
		RefreshTimeout: 2 * time.Second,
	})
	require.NoError(t, err)

	h := &harness{
		gateway:   gw,
		store:     store,
		navigator: &recordingNavigator{},
		notifier:  &recordingNotifier{},
	}
	h.session, err = New(store, gw, logger.NewNop(), Options{
		LoginPath: "/login",
		Navigator: h.navigator,
		Notifier:  h.notifier,
		Now:       func() time.Time { return testNow },
	})
	require.NoError(t, err)
	gw.SetExpiryHandler(h.session)

	return h
}

func unusedAPI(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})
}

func TestNewSessionIsLoading(t *testing.T) {
	h := newHarness(t, unusedAPI(t))

	state := h.session.Snapshot()
	assert.True(t, state.Loading)
	assert.False(t, state.IsAuthenticated)
	assert.Equal(t, StatusLoading, state.Status())
}

func TestStartWithEmptyStore(t *testing.T) {
	h := newHarness(t, unusedAPI(t))

	require.NoError(t, h.session.Start(context.Background()))

	state := h.session.Snapshot()
	assert.False(t, state.Loading)
	assert.False(t, state.IsAuthenticated)
	assert.Nil(t, state.User)
	assert.Empty(t, h.navigator.visited())
}

func TestStartOnlyOnce(t *testing.T) {
	h := newHarness(t, unusedAPI(t))

	require.NoError(t, h.session.Start(context.Background()))
	assert.ErrorIs(t, h.session.Start(context.Background()), ErrAlreadyStarted)
}

func TestStartRestoresValidToken(t *testing.T) {
	h := newHarness(t, unusedAPI(t))
	token := signToken(t, jwt.MapClaims{"id": "u-1", "exp": testNow.Add(time.Hour).Unix()})
	profile := &db.Profile{Id: "u-1", Name: "Ann", Email: "ann@example.com", Role: db.RoleAdmin}
	require.NoError(t, h.store.Save(context.Background(), token, profile))

	require.NoError(t, h.session.Start(context.Background()))

	state := h.session.Snapshot()
	assert.True(t, state.IsAuthenticated)
	assert.False(t, state.Loading)
	assert.Equal(t, token, state.AccessToken)
	assert.Equal(t, profile, state.User)
	assert.Equal(t, db.RoleAdmin, state.Role())
}

func TestStartWithoutCachedProfileUsesTokenId(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		wantId string
	}{
		{
			name:   "id claim",
			claims: jwt.MapClaims{"id": "u-7", "sub": "other", "exp": testNow.Add(time.Minute).Unix()},
			wantId: "u-7",
		},
		{
			name:   "falls back to sub",
			claims: jwt.MapClaims{"sub": "u-8", "exp": testNow.Add(time.Minute).Unix()},
			wantId: "u-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, unusedAPI(t))
			token := signToken(t, tt.claims)
			require.NoError(t, h.store.Save(context.Background(), token, nil))

			require.NoError(t, h.session.Start(context.Background()))

			state := h.session.Snapshot()
			require.True(t, state.IsAuthenticated)
			require.NotNil(t, state.User)
			assert.Equal(t, tt.wantId, state.User.Id)
			assert.Empty(t, state.User.Role)
		})
	}
}

func TestStartRejectsUnusableToken(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signToken(t, jwt.MapClaims{"id": "u-1", "exp": testNow.Add(-time.Second).Unix()})
			},
		},
		{
			name: "no exp claim",
			token: func(t *testing.T) string {
				return signToken(t, jwt.MapClaims{"id": "u-1"})
			},
		},
		{
			name:  "garbage",
			token: func(*testing.T) string { return "not-a-jwt" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, unusedAPI(t))
			require.NoError(t, h.store.Save(context.Background(), tt.token(t), &db.Profile{Id: "u-1", Role: db.RoleUser}))

			require.NoError(t, h.session.Start(context.Background()))

			state := h.session.Snapshot()
			assert.False(t, state.IsAuthenticated)
			assert.False(t, state.Loading)

			_, ok, err := h.store.Read(context.Background())
			require.NoError(t, err)
			assert.False(t, ok, "store must be cleared")
		})
	}
}

func authAPI(t *testing.T, status int, body any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api"+gateway.PathRefreshToken {
			t.Errorf("auth endpoints must not trigger refresh")
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
}

func TestLoginSuccess(t *testing.T) {
	api := authAPI(t, http.StatusOK, map[string]string{
		"accessToken": "T1",
		"id":          "u-1",
		"name":        "Ann",
		"email":       "ann@example.com",
		"role":        "ADMIN",
	})
	h := newHarness(t, api)
	require.NoError(t, h.session.Start(context.Background()))

	profile, err := h.session.Login(context.Background(), "ann@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, db.RoleAdmin, profile.Role)

	state := h.session.Snapshot()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "T1", state.AccessToken)
	assert.Equal(t, "Ann", state.User.Name)

	creds, ok, err := h.store.Read(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T1", creds.AccessToken)
	assert.Equal(t, "ann@example.com", creds.Profile.Email)

	assert.Equal(t, []string{"success: Login Successful"}, h.notifier.all())
}

func TestLoginFailureLeavesStateUnchanged(t *testing.T) {
	api := authAPI(t, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
	h := newHarness(t, api)
	require.NoError(t, h.session.Start(context.Background()))
	before := h.session.Snapshot()

	_, err := h.session.Login(context.Background(), "ann@example.com", "wrong")
	require.Error(t, err)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "Invalid email or password", authErr.Message)
	assert.Equal(t, http.StatusUnauthorized, gateway.StatusCode(err))
	assert.False(t, errors.Is(err, gateway.ErrSessionExpired))

	assert.Equal(t, before, h.session.Snapshot())
	_, ok, err := h.store.Read(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"error: Invalid email or password"}, h.notifier.all())
	assert.Empty(t, h.navigator.visited())
}

func TestLoginFailureWithoutServerMessage(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	h := newHarness(t, api)

	_, err := h.session.Login(context.Background(), "ann@example.com", "secret")
	require.Error(t, err)
	assert.Equal(t, "Login Failed", err.Error())
}

func TestLoginRejectsEmptyAccessToken(t *testing.T) {
	api := authAPI(t, http.StatusOK, map[string]string{"id": "u-1"})
	h := newHarness(t, api)

	_, err := h.session.Login(context.Background(), "ann@example.com", "secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAccessToken)
	assert.False(t, h.session.Snapshot().IsAuthenticated)
}

func TestLoginValidatesInputLocally(t *testing.T) {
	h := newHarness(t, unusedAPI(t))

	_, err := h.session.Login(context.Background(), "not-an-email", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "Login Failed", err.Error())
}

func TestRegisterSuccess(t *testing.T) {
	var got db.RegisterUserReq
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api"+gateway.PathRegister, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"accessToken": "T9",
			"id":          "u-9",
			"name":        "Bob",
			"email":       "bob@example.com",
			"role":        "USER",
		})
	})
	h := newHarness(t, api)

	profile, err := h.session.Register(context.Background(), "Bob", "bob@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u-9", profile.Id)
	assert.Equal(t, db.RegisterUserReq{Name: "Bob", Email: "bob@example.com", Password: "secret"}, got)

	state := h.session.Snapshot()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, db.RoleUser, state.Role())
	assert.Equal(t, []string{"success: Registration Successful"}, h.notifier.all())
}

func TestRegisterFailure(t *testing.T) {
	api := authAPI(t, http.StatusBadRequest, map[string]string{"message": "User already exists"})
	h := newHarness(t, api)

	_, err := h.session.Register(context.Background(), "Bob", "bob@example.com", "secret")
	require.Error(t, err)
	assert.Equal(t, "User already exists", err.Error())
	assert.False(t, h.session.Snapshot().IsAuthenticated)
}

func TestLogoutClearsEvenWhenServerFails(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusInternalServerError, http.StatusUnauthorized} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var refreshCalls atomic.Int32
			api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/api"+gateway.PathRefreshToken {
					refreshCalls.Add(1)
				}
				w.WriteHeader(status)
				json.NewEncoder(w).Encode(map[string]string{"message": "bye"})
			})
			h := newHarness(t, api)
			token := signToken(t, jwt.MapClaims{"id": "u-1", "exp": testNow.Add(time.Hour).Unix()})
			require.NoError(t, h.store.Save(context.Background(), token, &db.Profile{Id: "u-1", Role: db.RoleUser}))
			require.NoError(t, h.session.Start(context.Background()))

			require.NoError(t, h.session.Logout(context.Background()))

			assert.False(t, h.session.Snapshot().IsAuthenticated)
			_, ok, err := h.store.Read(context.Background())
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, []string{"/login"}, h.navigator.visited())
			assert.Equal(t, []string{"info: Logged Out"}, h.notifier.all())
			assert.EqualValues(t, 0, refreshCalls.Load())
		})
	}
}

func TestExpiredRefreshSignalsSessionAndRedirects(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Not authorized"})
	})
	h := newHarness(t, api)
	token := signToken(t, jwt.MapClaims{"id": "u-1", "exp": testNow.Add(time.Hour).Unix()})
	require.NoError(t, h.store.Save(context.Background(), token, &db.Profile{Id: "u-1", Role: db.RoleUser}))
	require.NoError(t, h.session.Start(context.Background()))
	require.True(t, h.session.Snapshot().IsAuthenticated)

	_, err := h.gateway.Get(context.Background(), "/expenses")
	require.ErrorIs(t, err, gateway.ErrSessionExpired)

	assert.False(t, h.session.Snapshot().IsAuthenticated)
	assert.Equal(t, []string{"/login"}, h.navigator.visited())
	_, ok, err := h.store.Read(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshUpdatesSnapshotToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"id": "u-1", "exp": testNow.Add(time.Hour).Unix()})
	api := http.NewServeMux()
	api.HandleFunc("/api/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "T2"})
	})
	api.HandleFunc("/api/expenses", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[]`))
	})
	h := newHarness(t, api)
	require.NoError(t, h.store.Save(context.Background(), token, &db.Profile{Id: "u-1", Role: db.RoleUser}))
	require.NoError(t, h.session.Start(context.Background()))

	var transitions int
	h.session.OnChange(func(State) { transitions++ })

	_, err := h.gateway.Get(context.Background(), "/expenses")
	require.NoError(t, err)

	state := h.session.Snapshot()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "T2", state.AccessToken)
	assert.Equal(t, db.RoleUser, state.Role())
	assert.Zero(t, transitions)
}

func TestRefreshedTokenIgnoredWhenSignedOut(t *testing.T) {
	h := newHarness(t, unusedAPI(t))
	require.NoError(t, h.session.Start(context.Background()))

	h.session.HandleTokenRefreshed(context.Background(), "T2")
	assert.Empty(t, h.session.Snapshot().AccessToken)
	assert.False(t, h.session.Snapshot().IsAuthenticated)
}

func TestObserversSeeEveryTransition(t *testing.T) {
	api := authAPI(t, http.StatusOK, map[string]string{"accessToken": "T1", "id": "u-1", "role": "USER"})
	h := newHarness(t, api)

	var statuses []string
	h.session.OnChange(func(s State) {
		statuses = append(statuses, s.Status())
	})

	require.NoError(t, h.session.Start(context.Background()))
	_, err := h.session.Login(context.Background(), "ann@example.com", "secret")
	require.NoError(t, err)
	require.NoError(t, h.session.Logout(context.Background()))

	assert.Equal(t, []string{StatusUnauthenticated, StatusAuthenticated, StatusUnauthenticated}, statuses)
}

func TestSnapshotIsACopy(t *testing.T) {
	api := authAPI(t, http.StatusOK, map[string]string{"accessToken": "T1", "id": "u-1", "role": "USER"})
	h := newHarness(t, api)

	_, err := h.session.Login(context.Background(), "ann@example.com", "secret")
	require.NoError(t, err)

	snap := h.session.Snapshot()
	snap.User.Role = db.RoleAdmin
	assert.Equal(t, db.RoleUser, h.session.Snapshot().Role())
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, nil, nil, Options{})
	assert.Error(t, err)

	_, err = New(db.NewMemoryStore(), nil, nil, Options{})
	assert.Error(t, err)
}
