package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rx3lixir/expense-dashboard/auth-grpc/server"
	"github.com/rx3lixir/expense-dashboard/internal/app"
	"github.com/rx3lixir/expense-dashboard/internal/shell"
	"github.com/rx3lixir/expense-dashboard/pkg/health"
)

// version подставляется при сборке через -ldflags
var version = "dev"

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Host one tab: local shell, health and gRPC health servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	c := opts.cfg
	log := opts.log

	// Создаем контекст, который можно отменить при получении сигнала остановки
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Настраиваем обработку сигналов для грациозного завершения
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	log.Info("Configuration loaded",
		"env", c.Service.Env,
		"store", c.Store.Driver,
		"api_base_url", c.API.BaseURL,
		"shell_address", c.Server.ShellAddress,
	)

	a, err := app.New(ctx, c, log, app.Options{TabID: opts.tabID, Out: os.Stderr})
	if err != nil {
		return fmt.Errorf("initialize session core: %w", err)
	}
	defer a.Close()

	// gRPC health следит за сессией с состояния Loading
	grpcServer := server.NewServer(a.Session, a.Log)

	listener, err := net.Listen("tcp", c.Server.GRPCAddress)
	if err != nil {
		return fmt.Errorf("start grpc listener: %w", err)
	}

	healthServer := health.NewServer(a.Log, append(a.HealthCheckers(),
		health.WithServiceName("expense-dashboard"),
		health.WithVersion(version),
		health.WithPort(c.Server.HealthAddress),
		health.WithTimeout(5*time.Second),
	)...)

	shellServer := shell.New(shell.Deps{
		Session:  a.Session,
		Router:   a.Router,
		API:      a.Gateway,
		Gatherer: a.Registry,
		Log:      a.Log,
		Addr:     c.Server.ShellAddress,
	})

	errCh := make(chan error, 3)

	go func() {
		errCh <- healthServer.Start()
	}()

	go func() {
		errCh <- grpcServer.Serve(listener)
	}()

	// Проверка при запуске до того, как оболочка начнет отвечать по страницам
	if err := a.Session.Start(ctx); err != nil {
		log.Error("Session startup check failed", "error", err)
	}
	log.Info("Tab ready", "tab_id", a.TabID, "state", a.Session.Snapshot().Status())

	go func() {
		errCh <- shellServer.Start()
	}()

	var runErr error
	select {
	case <-signalCh:
		log.Info("Shutting down gracefully...")
	case <-ctx.Done():
		log.Info("Context cancelled, shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("Server error", "error", err)
			runErr = err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := shellServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Shell shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Health server shutdown error", "error", err)
	}

	log.Info("Server stopped gracefully")
	return runErr
}
