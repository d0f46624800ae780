package server

import (
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rx3lixir/expense-dashboard/internal/session"
)

// ConvertStateToServing преобразует состояние сессии в статус gRPC health.
// Сервис сессии обслуживает запросы только аутентифицированной вкладки
func ConvertStateToServing(state session.State) healthpb.HealthCheckResponse_ServingStatus {
	switch {
	case state.Loading:
		return healthpb.HealthCheckResponse_UNKNOWN
	case state.IsAuthenticated:
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}
