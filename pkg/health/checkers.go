package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisChecker проверка Redis, в котором лежат токены вкладок
func RedisChecker(client *redis.Client) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		start := time.Now()

		_, err := client.Ping(ctx).Result()
		duration := time.Since(start)

		if err != nil {
			return CheckResult{
				Status: StatusDown,
				Error:  err.Error(),
				Details: map[string]any{
					"duration_ms": duration.Milliseconds(),
				},
			}
		}

		return CheckResult{
			Status: StatusUp,
			Details: map[string]any{
				"duration_ms": duration.Milliseconds(),
			},
		}
	})
}

// APIChecker проверка доступности удаленного API. Любой ответ ниже 500 значит, что API живо
func APIChecker(client *http.Client, url string) Checker {
	if client == nil {
		client = http.DefaultClient
	}

	return CheckerFunc(func(ctx context.Context) CheckResult {
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return CheckResult{Status: StatusDown, Error: err.Error()}
		}

		resp, err := client.Do(req)
		duration := time.Since(start)
		if err != nil {
			return CheckResult{
				Status: StatusDown,
				Error:  err.Error(),
				Details: map[string]any{
					"url":         url,
					"duration_ms": duration.Milliseconds(),
				},
			}
		}
		resp.Body.Close()

		details := map[string]any{
			"url":         url,
			"status_code": resp.StatusCode,
			"duration_ms": duration.Milliseconds(),
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return CheckResult{Status: StatusDegraded, Details: details}
		}
		return CheckResult{Status: StatusUp, Details: details}
	})
}

// SessionChecker готовность сессии: пока идет проверка при запуске, вкладка не готова
func SessionChecker(status func() (state string, ready bool)) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		s, ready := status()
		if !ready {
			return CheckResult{
				Status:  StatusDown,
				Error:   "session startup check in progress",
				Details: map[string]any{"session": s},
			}
		}
		return CheckResult{
			Status:  StatusUp,
			Details: map[string]any{"session": s},
		}
	})
}
