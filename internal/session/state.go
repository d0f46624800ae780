package session

import "github.com/rx3lixir/expense-dashboard/internal/db"

const (
	StatusLoading         = "loading"
	StatusAuthenticated   = "authenticated"
	StatusUnauthenticated = "unauthenticated"
)

// State снимок сессии. IsAuthenticated означает, что User и AccessToken заполнены
type State struct {
	User            *db.Profile `json:"user"`
	AccessToken     string      `json:"-"`
	IsAuthenticated bool        `json:"isAuthenticated"`
	Loading         bool        `json:"loading"`
}

// Status имя состояния для логов, метрик и health
func (s State) Status() string {
	switch {
	case s.Loading:
		return StatusLoading
	case s.IsAuthenticated:
		return StatusAuthenticated
	default:
		return StatusUnauthenticated
	}
}

// Role роль текущего пользователя или пустая строка
func (s State) Role() db.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func unauthenticated() State {
	return State{}
}
