package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	clog "github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/modoterra/rawlog/internal/buildinfo"
	"github.com/modoterra/rawlog/pkg/config"
	"github.com/modoterra/rawlog/pkg/config/presets"
	"github.com/modoterra/rawlog/pkg/core"
	"github.com/modoterra/rawlog/pkg/daemon"
	"github.com/modoterra/rawlog/pkg/daemon/service"
	"github.com/modoterra/rawlog/pkg/lifecycle"
	"github.com/modoterra/rawlog/pkg/logfile"
	"github.com/modoterra/rawlog/pkg/logger"
	"github.com/modoterra/rawlog/pkg/transport/uds"
	tuimodel "github.com/modoterra/rawlog/pkg/tui/model"
)

var (
	configPath string
	socketPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rawlog",
	Short: "Single-file raw logger",
	Long:  "rawlog appends text, structured values and scalars to one flat log file, and lets you view and clear it from a TUI or an HTTP page served by rawlogd.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runView(cmd, false)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFile, "path to rawlog.yaml")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon socket path (overrides config)")

	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(versionCmd)
}

// --- Helpers ---

func cliLogger() *slog.Logger {
	return slog.New(clog.NewWithOptions(os.Stderr, clog.Options{
		Level:           clog.WarnLevel,
		ReportTimestamp: true,
	}))
}

// loadConfig resolves the config file, .env, RAWLOG_* variables and --socket.
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

func openLogger(cfg *config.Config) *logger.Logger {
	return logger.New(cfg, logger.WithSlog(cliLogger()))
}

// dialDaemon connects to rawlogd. A missing socket is reported without dialing.
func dialDaemon(cfg *config.Config) (*uds.Client, error) {
	if _, err := os.Stat(cfg.Socket); err != nil {
		return nil, fmt.Errorf("daemon not running at %s: %w", cfg.Socket, err)
	}
	client, err := uds.Dial(cfg.Socket)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", cfg.Socket, err)
	}
	return client, nil
}

func ensureDaemon(cfg *config.Config) {
	if _, err := os.Stat(cfg.Socket); err == nil {
		return
	}
	cmd := exec.Command("rawlogd", "--config", configPath, "--socket", cfg.Socket)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not start rawlogd:", err)
		return
	}
	for i := 0; i < 30; i++ {
		if _, err := os.Stat(cfg.Socket); err == nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr, "warning: could not start daemon, continuing anyway")
}

// --- Lifecycle ---

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Create the log directory and file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runLifecycle(cmd, lifecycle.EventActivate)
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Run deactivation (deletes the log file unless delete_on_deactivate is false)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runLifecycle(cmd, lifecycle.EventDeactivate)
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the log file, and its directory when empty",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runLifecycle(cmd, lifecycle.EventUninstall)
	},
}

func runLifecycle(cmd *cobra.Command, ev lifecycle.Event) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m := openLogger(cfg).Lifecycle()
	if err := m.Handle(ev); err != nil {
		return err
	}
	state, err := m.State()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", ev, state, m.Path())
	return nil
}

// --- Log ---

var (
	logJSON   bool
	logScalar bool
)

var logCmd = &cobra.Command{
	Use:   "log <level> [payload]",
	Short: "Append an entry (payload from the argument or stdin)",
	Long: `Append an entry to the log file.

The payload is written as text unless --json or --scalar is given. Text that
happens to be a JSON object or array is pretty-printed. With --json the payload
is decoded and written as a structured value; with --scalar it must be a
number, true, false or null.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var payload string
		if len(args) == 2 {
			payload = args[1]
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			payload = strings.TrimSuffix(string(data), "\n")
		}

		req, err := buildLogRequest(strings.ToUpper(args[0]), payload, logJSON, logScalar)
		if err != nil {
			return err
		}

		if client, err := dialDaemon(cfg); err == nil {
			defer client.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Request(ctx, uds.MethodLog, req)
			return err
		}

		p, err := daemon.PayloadFromRequest(req)
		if err != nil {
			return err
		}
		return openLogger(cfg).Write(core.Level(req.Level), p)
	},
}

func init() {
	logCmd.Flags().BoolVar(&logJSON, "json", false, "decode the payload as a structured value")
	logCmd.Flags().BoolVar(&logScalar, "scalar", false, "write the payload as a scalar literal")
}

func buildLogRequest(level, payload string, asJSON, asScalar bool) (uds.LogRequest, error) {
	req := uds.LogRequest{Level: core.Level(level).String()}
	switch {
	case asJSON && asScalar:
		return req, errors.New("--json and --scalar are mutually exclusive")
	case asJSON:
		if !json.Valid([]byte(payload)) {
			return req, fmt.Errorf("--json: payload is not valid JSON")
		}
		req.Value = json.RawMessage(payload)
	case asScalar:
		var v any
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return req, fmt.Errorf("--scalar: %q is not a number, boolean or null", payload)
		}
		switch v.(type) {
		case map[string]any, []any, string:
			return req, fmt.Errorf("--scalar: %q is not a number, boolean or null", payload)
		}
		req.Value = json.RawMessage(payload)
		req.Scalar = true
	default:
		req.Text = &payload
	}
	return req, nil
}

// --- View ---

var viewRaw bool

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open the log viewer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runView(cmd, viewRaw)
	},
}

func init() {
	viewCmd.Flags().BoolVar(&viewRaw, "raw", false, "print the file contents instead of opening the TUI")
}

func runView(cmd *cobra.Command, raw bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if raw {
		contents, err := readContents(cfg)
		if err != nil {
			return err
		}
		if contents == "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "No logs found.")
			return nil
		}
		_, err = io.WriteString(cmd.OutOrStdout(), contents)
		return err
	}

	ensureDaemon(cfg)
	p := tea.NewProgram(tuimodel.New(cfg.Socket), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// readContents asks the daemon for the file, falling back to reading it directly.
func readContents(cfg *config.Config) (string, error) {
	if client, err := dialDaemon(cfg); err == nil {
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		snap, err := client.ReadLog(ctx)
		if err == nil {
			return snap.Contents, nil
		}
		cliLogger().Warn("daemon read failed, reading the file directly", "err", err)
	}
	return logfile.ReadAll(cfg.LogPath())
}

// --- Clear ---

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Truncate the log file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if !clearYes {
			confirmed := false
			err := huh.NewConfirm().
				Title("Clear the log file?").
				Description(cfg.LogPath()).
				Affirmative("Clear").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Fprintln(cmd.OutOrStdout(), "clear cancelled")
				return nil
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if client, err := dialDaemon(cfg); err == nil {
			defer client.Close()
			return clearViaDaemon(ctx, cmd, client)
		}

		if err := openLogger(cfg).Lifecycle().Clear(ctx); err != nil {
			return fmt.Errorf("%s: %w", daemon.NoticeClearFailed, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), daemon.NoticeCleared)
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
}

func clearViaDaemon(ctx context.Context, cmd *cobra.Command, client *uds.Client) error {
	resp, err := client.Request(ctx, uds.MethodOpenSession, nil)
	if err != nil {
		return err
	}
	var sess uds.SessionResponse
	if err := resp.UnmarshalData(&sess); err != nil {
		return err
	}

	resp, err = client.Request(ctx, uds.MethodClearLog, uds.ClearLogRequest{Token: sess.Token})
	if err != nil {
		return err
	}
	var out uds.ClearLogResponse
	if err := resp.UnmarshalData(&out); err != nil {
		return err
	}
	if !out.OK {
		return errors.New(out.Notice)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Notice)
	return nil
}

// --- Status ---

var statusJSON bool

type statusReport struct {
	Path    string    `json:"path"`
	State   string    `json:"state"`
	Size    int64     `json:"size"`
	Entries int       `json:"entries"`
	ModTime time.Time `json:"mod_time,omitzero"`
	Socket  string    `json:"socket"`
	Daemon  bool      `json:"daemon"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the log file and daemon state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		m := openLogger(cfg).Lifecycle()
		state, err := m.State()
		if err != nil {
			return err
		}
		info, err := logfile.Stat(m.Path())
		if err != nil {
			return err
		}

		report := statusReport{
			Path:    info.Path,
			State:   string(state),
			Size:    info.Size,
			Entries: info.Entries,
			ModTime: info.ModTime,
			Socket:  cfg.Socket,
		}
		if client, err := dialDaemon(cfg); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_, err := client.Request(ctx, uds.MethodPing, nil)
			cancel()
			client.Close()
			report.Daemon = err == nil
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Fprintf(out, "%-9s %s\n", "path:", report.Path)
		fmt.Fprintf(out, "%-9s %s\n", "state:", report.State)
		if state != lifecycle.StateAbsent {
			fmt.Fprintf(out, "%-9s %s\n", "size:", humanize.IBytes(uint64(report.Size)))
			fmt.Fprintf(out, "%-9s %d\n", "entries:", report.Entries)
			fmt.Fprintf(out, "%-9s %s\n", "modified:", humanize.Time(report.ModTime))
		}
		daemonState := "not running"
		if report.Daemon {
			daemonState = "running"
		}
		fmt.Fprintf(out, "%-9s %s (%s)\n", "daemon:", daemonState, report.Socket)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

// --- Config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage rawlog.yaml",
}

var (
	configInitRoot   string
	configInitOutput string
)

var configInitCmd = &cobra.Command{
	Use:   "init [preset]",
	Short: "Generate a rawlog.yaml",
	Long:  "Available presets: default, wordpress",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preset := "default"
		if len(args) > 0 {
			preset = args[0]
		}

		var (
			c   *config.Config
			err error
		)
		switch preset {
		case "default":
			c, err = presets.GenerateDefault()
		case "wordpress":
			c, err = presets.GenerateWordPress(configInitRoot)
		default:
			return fmt.Errorf("unknown preset: %s (available: default, wordpress)", preset)
		}
		if err != nil {
			return err
		}

		if err := config.Save(c, configInitOutput); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %s (log file %s)\n", configInitOutput, c.LogPath())
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitRoot, "root", ".", "WordPress root directory")
	configInitCmd.Flags().StringVar(&configInitOutput, "output", config.DefaultFile, "output file path")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a rawlog.yaml",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) > 0 {
			path = args[0]
		}

		c, err := config.Load(path)
		if err != nil {
			return err
		}

		errs := config.Validate(c)
		if len(errs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (log file %s)\n", path, c.LogPath())
			return nil
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d error(s)\n", path, len(errs))
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "  • %s\n", e)
		}
		return fmt.Errorf("%s is invalid", path)
	},
}

// --- Service ---

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the rawlogd systemd user service",
}

func init() {
	serviceCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install and start the rawlogd user unit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile := ""
			if _, err := os.Stat(configPath); err == nil {
				cfgFile = configPath
			}
			if err := service.Install(cfgFile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rawlogd.service installed")
			return nil
		},
	})
	serviceCmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Stop and remove the rawlogd user unit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := service.Uninstall(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rawlogd.service removed")
			return nil
		},
	})
	serviceCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show socket, log file and unit state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), service.Status(cfg.Socket, cfg.LogPath()))
			return nil
		},
	})
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String("rawlog"))
	},
}
