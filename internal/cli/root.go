package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rx3lixir/expense-dashboard/internal/app"
	"github.com/rx3lixir/expense-dashboard/internal/config"
	"github.com/rx3lixir/expense-dashboard/internal/logger"
)

// rootOptions общие флаги всех команд
type rootOptions struct {
	configDir string
	tabID     string
	debug     bool

	cfg *config.AppConfig
	log logger.Logger
}

// NewRootCmd корневая команда dashboard
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "dashboard",
		Short: "Session core of the expense dashboard",
		Long: "dashboard keeps the authenticated session of one tab against the expense API.\n" +
			"One-shot commands share a tab only through the redis store (--tab or DASHBOARD_TAB).",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				opts.log.Sync()
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "Directory with config.yaml (default ./internal/config)")
	root.PersistentFlags().StringVar(&opts.tabID, "tab", os.Getenv("DASHBOARD_TAB"), "Tab id scoping the stored credentials (or DASHBOARD_TAB env)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newLoginCmd(opts),
		newRegisterCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newRouteCmd(opts),
		newRequestCmd(opts),
	)

	return root
}

func (o *rootOptions) load() error {
	var (
		c   *config.AppConfig
		err error
	)
	if o.configDir != "" {
		c, err = config.Load(o.configDir)
	} else {
		c, err = config.New()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := c.Service.Env
	if o.debug {
		env = "dev"
	}

	o.cfg = c
	o.log = logger.New(env)
	return nil
}

// open собирает ядро сессии и выполняет проверку при запуске
func (o *rootOptions) open(ctx context.Context, out io.Writer) (*app.App, error) {
	a, err := app.New(ctx, o.cfg, o.log, app.Options{
		TabID: o.tabID,
		Out:   out,
	})
	if err != nil {
		return nil, err
	}

	if err := a.Session.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("session startup: %w", err)
	}
	return a, nil
}
