package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionExpired обмен refresh-токена не удался, сессия закончилась.
// Идет вместе с исходной ошибкой 401
var ErrSessionExpired = errors.New("session expired")

// APIError ответ API со статусом вне 2xx
type APIError struct {
	StatusCode int
	// Message сообщение сервера, если оно было в теле
	Message string
	Body    []byte
	// Header заголовки ответа, нужны для проксирования тела как есть
	Header http.Header
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (status %d)", e.StatusCode)
}

// StatusCode достает статус из цепочки ошибок, 0 если это не ошибка API
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ServerMessage сообщение сервера из цепочки ошибок или пустая строка
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// extractMessage сначала message, потом error
func extractMessage(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return parsed.Error
}
