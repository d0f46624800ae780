package server

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rx3lixir/expense-dashboard/internal/logger"
	"github.com/rx3lixir/expense-dashboard/internal/session"
)

// SessionService имя сервиса в gRPC health, которое отражает состояние сессии
const SessionService = "expense_dashboard.Session"

// StateSource то, что серверу нужно от сессии
type StateSource interface {
	Snapshot() session.State
	OnChange(fn func(session.State))
}

// Server gRPC сервер со стандартным health и reflection.
// Процесс всегда SERVING, а статус SessionService следует за сессией
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	log        logger.Logger
}

// NewServer создает сервер и подписывается на переходы сессии
func NewServer(src StateSource, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}

	s := &Server{
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
		log:        log.With("component", "grpc"),
	}

	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	// Включение reflection для отладки
	reflection.Register(s.grpcServer)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.setSessionStatus(src.Snapshot())
	src.OnChange(s.setSessionStatus)

	return s
}

func (s *Server) setSessionStatus(state session.State) {
	status := ConvertStateToServing(state)
	s.health.SetServingStatus(SessionService, status)
	s.log.Debug("session serving status updated", "status", status.String())
}

// Serve блокируется до остановки
func (s *Server) Serve(listener net.Listener) error {
	s.log.Info("Server is listening", "address", listener.Addr().String())
	return s.grpcServer.Serve(listener)
}

// GracefulStop переводит все сервисы в NOT_SERVING и ждет текущие запросы
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
