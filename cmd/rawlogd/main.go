package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/modoterra/rawlog/internal/buildinfo"
	"github.com/modoterra/rawlog/pkg/admin"
	"github.com/modoterra/rawlog/pkg/config"
	"github.com/modoterra/rawlog/pkg/daemon"
	"github.com/modoterra/rawlog/pkg/logger"
)

var (
	configPath string
	socketPath string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "rawlogd",
	Short:        "Serve the rawlog file to viewers over a Unix socket and HTTP",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", config.DefaultFile, "path to rawlog.yaml")
	rootCmd.Flags().StringVar(&socketPath, "socket", "", "socket path (overrides config)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String("rawlogd"))
		},
	})
}

func newLogger() *slog.Logger {
	level := clog.InfoLevel
	if verbose {
		level = clog.DebugLevel
	}
	return slog.New(clog.NewWithOptions(os.Stderr, clog.Options{
		Level:           level,
		Prefix:          "rawlogd",
		ReportTimestamp: true,
	}))
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(cfg, os.LookupEnv)
	if socketPath != "" {
		cfg.Socket = socketPath
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", cfg.FilePath, errors.Join(errs...))
	}
	return cfg, nil
}

func run() error {
	slogger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		slogger.Error("config", "err", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Deactivation is the host application's event, not the daemon's exit.
	lg := logger.New(cfg, logger.WithSlog(slogger))
	if err := lg.Open(); err != nil {
		slogger.Error("activate log file", "path", lg.Path(), "err", err)
		return err
	}
	defer lg.Close()

	d := daemon.New(cfg.Socket, lg, slogger)
	defer d.Shutdown()

	follow := daemon.NewFollowLoop(d, slogger)
	go follow.Run(ctx)

	if cfg.Admin.Listen != "" {
		srv := &http.Server{
			Addr: cfg.Admin.Listen,
			Handler: admin.Handler(admin.Config{
				Path:     cfg.Admin.Path,
				Log:      lg,
				Sessions: d.Sessions(),
				Logger:   slogger,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slogger.Info("admin page listening", "addr", cfg.Admin.Listen, "path", cfg.Admin.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slogger.Error("admin server", "err", err)
				cancel()
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	slogger.Info("starting rawlogd", "version", buildinfo.Version, "log", lg.Path(), "socket", cfg.Socket)
	if err := d.Run(ctx); err != nil {
		slogger.Error("daemon error", "err", err)
		return err
	}
	slogger.Info("shutting down")
	return nil
}
