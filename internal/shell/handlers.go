package shell

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rx3lixir/expense-dashboard/internal/db"
	"github.com/rx3lixir/expense-dashboard/internal/gateway"
	"github.com/rx3lixir/expense-dashboard/internal/guard"
	"github.com/rx3lixir/expense-dashboard/internal/session"
)

// sessionView состояние сессии наружу, без токена
type sessionView struct {
	State           string      `json:"state"`
	User            *db.Profile `json:"user,omitempty"`
	IsAuthenticated bool        `json:"isAuthenticated"`
	Loading         bool        `json:"loading"`
}

func viewOf(state session.State) sessionView {
	return sessionView{
		State:           state.Status(),
		User:            state.User,
		IsAuthenticated: state.IsAuthenticated,
		Loading:         state.Loading,
	}
}

// authView ответ на вход и регистрацию: куда вести пользователя дальше
type authView struct {
	User     *db.Profile `json:"user"`
	Location string      `json:"location"`
}

type errorView struct {
	Error    string `json:"error"`
	Location string `json:"location,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, viewOf(s.session.Snapshot()))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req db.LoginUserReq
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorView{Error: err.Error()})
		return
	}

	profile, err := s.session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, authView{User: profile, Location: s.router.DefaultPage(profile)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req db.RegisterUserReq
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorView{Error: err.Error()})
		return
	}

	profile, err := s.session.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.respondAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, authView{User: profile, Location: s.router.DefaultPage(profile)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(r.Context()); err != nil {
		respondJSON(w, http.StatusInternalServerError, errorView{Error: err.Error(), Location: s.router.LoginPath()})
		return
	}
	respondJSON(w, http.StatusOK, authView{Location: s.router.LoginPath()})
}

func (s *Server) respondAuthError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		status = http.StatusBadRequest
	case gateway.StatusCode(err) != 0:
		status = gateway.StatusCode(err)
	}
	respondJSON(w, status, errorView{Error: err.Error()})
}

// handlePage решение охранника для страницы. Считается заново на каждый запрос
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	path := "/" + chi.URLParam(r, "*")
	decision := s.router.Resolve(s.session.Snapshot(), path)

	status := http.StatusOK
	switch decision.Action {
	case guard.ActionWait:
		status = http.StatusAccepted
	case guard.ActionRedirect:
		w.Header().Set("Location", decision.Location)
	}
	respondJSON(w, status, decision)
}

// handleAPI проксирует запрос через шлюз с токеном вкладки
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := "/" + chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	var opts []gateway.RequestOption
	var body any
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		// Обрезанное тело наверх не отправляем
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSON(w, http.StatusRequestEntityTooLarge, errorView{Error: "request body too large"})
			return
		}
		respondJSON(w, http.StatusBadRequest, errorView{Error: "failed to read request body"})
		return
	}
	if len(data) > 0 {
		body = data
		if ct := r.Header.Get("Content-Type"); ct != "" {
			opts = append(opts, gateway.WithHeader("Content-Type", ct))
		}
	}

	resp, err := s.api.Do(r.Context(), r.Method, path, body, opts...)
	if err != nil {
		s.respondAPIError(w, err)
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

func (s *Server) respondAPIError(w http.ResponseWriter, err error) {
	if errors.Is(err, gateway.ErrSessionExpired) {
		msg := gateway.ServerMessage(err)
		if msg == "" {
			msg = gateway.ErrSessionExpired.Error()
		}
		w.Header().Set("Location", s.router.LoginPath())
		respondJSON(w, http.StatusUnauthorized, errorView{
			Error:    msg,
			Location: s.router.LoginPath(),
		})
		return
	}

	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		if ct := apiErr.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(apiErr.StatusCode)
		w.Write(apiErr.Body)
		return
	}

	s.log.Error("api request failed", "error", err)
	respondJSON(w, http.StatusBadGateway, errorView{Error: err.Error()})
}

func decodeBody(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
