package db

// Role роль пользователя, которую возвращает API
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Profile кэшированный профиль пользователя
type Profile struct {
	Id    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role,omitempty"`
}

// Credentials то, что лежит в хранилище вкладки
type Credentials struct {
	AccessToken string
	// Profile может быть nil, если профиль не был сохранен или не читается
	Profile *Profile
}

type LoginUserReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterUserReq struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthRes ответ /auth/login и /auth/register
type AuthRes struct {
	AccessToken string `json:"accessToken"`
	Id          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

// Profile выделяет профиль из ответа авторизации
func (r *AuthRes) Profile() *Profile {
	return &Profile{
		Id:    r.Id,
		Name:  r.Name,
		Email: r.Email,
		Role:  r.Role,
	}
}

type RefreshTokenRes struct {
	AccessToken string `json:"accessToken"`
}
