package guard

import (
	"slices"

	"github.com/rx3lixir/expense-dashboard/internal/db"
	"github.com/rx3lixir/expense-dashboard/internal/session"
)

// Action что делать со страницей
type Action string

const (
	ActionWait     Action = "wait"
	ActionRedirect Action = "redirect"
	ActionRender   Action = "render"
)

// Decision решение охранника. Location заполнен только для Redirect
type Decision struct {
	Action   Action `json:"action"`
	Location string `json:"location,omitempty"`
}

// Paths куда отправлять пользователя при отказе
type Paths struct {
	Login        string
	UserDefault  string
	AdminDefault string
}

// DefaultPaths пути из маршрутов приложения
func DefaultPaths() Paths {
	return Paths{
		Login:        "/login",
		UserDefault:  "/dashboard",
		AdminDefault: "/admin/dashboard",
	}
}

// Decide чистая функция от состояния сессии и разрешенных ролей.
// Пустой roles значит, что хватает аутентификации
func (p Paths) Decide(state session.State, roles []db.Role) Decision {
	if state.Loading {
		return Decision{Action: ActionWait}
	}

	if !state.IsAuthenticated || state.User == nil {
		return Decision{Action: ActionRedirect, Location: p.Login}
	}

	if len(roles) > 0 && !slices.Contains(roles, state.User.Role) {
		return Decision{Action: ActionRedirect, Location: p.DefaultPage(state.User)}
	}

	return Decision{Action: ActionRender}
}

// DefaultPage стартовая страница по роли
func (p Paths) DefaultPage(profile *db.Profile) string {
	if profile != nil && profile.Role == db.RoleAdmin {
		return p.AdminDefault
	}
	return p.UserDefault
}

// Decide с путями по умолчанию
func Decide(state session.State, roles []db.Role) Decision {
	return DefaultPaths().Decide(state, roles)
}
