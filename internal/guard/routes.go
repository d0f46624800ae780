package guard

import (
	"strings"

	"github.com/rx3lixir/expense-dashboard/internal/db"
	"github.com/rx3lixir/expense-dashboard/internal/session"
)

// Route страница приложения. Public страницы открыты всем
type Route struct {
	Path   string
	Public bool
	Roles  []db.Role
}

// DefaultRoutes таблица страниц дашборда
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/login", Public: true},
		{Path: "/register", Public: true},
		{Path: "/dashboard", Roles: []db.Role{db.RoleUser, db.RoleAdmin}},
		{Path: "/reports", Roles: []db.Role{db.RoleUser}},
		{Path: "/admin/dashboard", Roles: []db.Role{db.RoleAdmin}},
		{Path: "/admin/users", Roles: []db.Role{db.RoleAdmin}},
		{Path: "/admin/categories", Roles: []db.Role{db.RoleAdmin}},
		{Path: "/admin/audit-logs", Roles: []db.Role{db.RoleAdmin}},
	}
}

// Router сопоставляет путь со страницей и спрашивает у охранника решение
type Router struct {
	paths  Paths
	routes map[string]Route
}

// NewRouter создает роутер. Пустые пути берутся по умолчанию
func NewRouter(paths Paths, routes []Route) *Router {
	def := DefaultPaths()
	if paths.Login == "" {
		paths.Login = def.Login
	}
	if paths.UserDefault == "" {
		paths.UserDefault = def.UserDefault
	}
	if paths.AdminDefault == "" {
		paths.AdminDefault = def.AdminDefault
	}

	r := &Router{
		paths:  paths,
		routes: make(map[string]Route, len(routes)),
	}
	for _, route := range routes {
		r.routes[normalize(route.Path)] = route
	}
	return r
}

// Resolve решение для пути. Считается заново при каждом вызове
func (r *Router) Resolve(state session.State, path string) Decision {
	path = normalize(path)
	route, ok := r.routes[path]
	if !ok {
		// "/" и неизвестные пути ведут на вход
		return Decision{Action: ActionRedirect, Location: r.paths.Login}
	}
	if route.Public {
		return Decision{Action: ActionRender}
	}

	decision := r.paths.Decide(state, route.Roles)
	if decision.Action == ActionRedirect && normalize(decision.Location) == path {
		// Страница по умолчанию сама не пускает эту роль, иначе редирект на себя
		return Decision{Action: ActionRedirect, Location: r.paths.Login}
	}
	return decision
}

// DefaultPage куда вести пользователя после входа
func (r *Router) DefaultPage(profile *db.Profile) string {
	return r.paths.DefaultPage(profile)
}

// LoginPath страница входа
func (r *Router) LoginPath() string {
	return r.paths.Login
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
