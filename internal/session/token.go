package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rx3lixir/expense-dashboard/internal/db"
)

var (
	errTokenExpired   = errors.New("access token expired")
	errTokenNoExpiry  = errors.New("access token has no exp claim")
	errTokenMalformed = errors.New("access token malformed")
)

// accessClaims то, что сервер кладет в токен доступа
type accessClaims struct {
	Id   string  `json:"id"`
	Role db.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *accessClaims) subject() string {
	if c.Id != "" {
		return c.Id
	}
	return c.Subject
}

// checkAccessToken декодирует токен без проверки подписи: ключ есть только у сервера,
// здесь нужен лишь срок действия. Любая ошибка разбора равна истекшему токену
func checkAccessToken(token string, now time.Time) (*accessClaims, error) {
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", errTokenMalformed, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTokenMalformed, err)
	}
	if exp == nil {
		return nil, errTokenNoExpiry
	}
	if exp.Before(now) {
		return nil, errTokenExpired
	}

	return claims, nil
}
