// Package main is the CLI entry point for logmonitor.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/logmonitor/internal/config"
	"github.com/eliteGoblin/focusd/logmonitor/internal/daemon"
	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
	"github.com/eliteGoblin/focusd/logmonitor/internal/infra"
	"github.com/eliteGoblin/focusd/logmonitor/internal/tail"
	"github.com/eliteGoblin/focusd/logmonitor/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "logmonitor",
	Short: "Log monitor - turns log lines into notifications",
	Long: `logmonitor tails log and status files, runs every new line through
the filters defined in the configuration directory and hands matches to
the configured send targets, with per-target debouncing.

Without a subcommand it behaves like "logmonitor run".`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runDaemon,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor in the foreground",
	Long: `Loads the configuration directory and monitors the configured files
until interrupted with SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration directory",
	Long:  `Loads the configuration directory and prints the notifications, targets and monitored files it defines.`,
	RunE:  runCheck,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configDir  string
	debug      bool
	logFile    string
	watch      bool
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "configdir", "c", config.DefaultDir, "Configuration directory")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write JSON logs to a rotated file instead of stdout")
	rootCmd.PersistentFlags().BoolVar(&watch, "watch", false, "Wake up early on filesystem events")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadAll reads settings and the notification configuration from dir.
func loadAll(dir string) (*domain.Config, config.Settings, error) {
	settings, err := config.LoadSettings(dir)
	if err != nil {
		return nil, settings, err
	}
	cfg, err := config.NewLoader(infra.NewFileSystemManager()).Load(dir)
	if err != nil {
		return nil, settings, err
	}
	return cfg, settings, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, settings, err := loadAll(configDir)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("watch") {
		settings.Watch = watch
	}

	logger := infra.NewLogger(infra.LogConfig{
		Debug:      debug,
		File:       logFile,
		MaxSizeMB:  settings.Log.MaxSizeMB,
		MaxBackups: settings.Log.MaxBackups,
		MaxAgeDays: settings.Log.MaxAgeDays,
	}, os.Stdout)
	defer func() { _ = logger.Sync() }()

	logger.Info("logmonitor starting",
		zap.String("version", Version),
		zap.String("configdir", configDir),
		zap.Int("notifications", len(cfg.Notifications)),
		zap.Int("targets", len(cfg.Targets)))

	// Set up graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := infra.NewSystemClock()
	runner := infra.NewProcessRunner(settings.ExecTimeout, logger)
	dispatcher := usecase.NewDispatcher(cfg.Targets, runner, clock, logger)
	matcher := usecase.NewMatcher(cfg.Notifications, runner, dispatcher, settings.OutputLimit, logger)

	var waker domain.Waker
	if settings.Watch {
		fw, err := infra.NewFileWatcher(cfg.Files, logger)
		if err != nil {
			logger.Warn("file watching disabled", zap.Error(err))
		} else {
			waker = fw
			defer func() { _ = fw.Close() }()
		}
	}

	monitor := daemon.NewMonitor(daemon.MonitorConfig{
		PollInterval: settings.PollInterval,
		Tracker:      tail.TrackerConfig{StatusReadInterval: settings.StatusReadInterval},
	}, cfg.Files, matcher, runner, clock, waker, logger)

	return monitor.Run(ctx)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, settings, err := loadAll(configDir)
	if err != nil {
		return err
	}
	printConfig(cmd.OutOrStdout(), cfg, settings)
	return nil
}

func printConfig(w io.Writer, cfg *domain.Config, settings config.Settings) {
	fmt.Fprintln(w, "\n=== Notifications ===")
	for _, n := range cfg.Notifications {
		fmt.Fprintf(w, "\n[%s]\n", n.Name)
		fmt.Fprintf(w, "  Filter: %s\n", n.Filter)
		fmt.Fprintf(w, "  Title:  %s\n", describeField(n.Title))
		fmt.Fprintf(w, "  Desc:   %s\n", describeField(n.Desc))
		fmt.Fprintf(w, "  Level:  %s\n", describeField(n.Level))
		fmt.Fprintln(w, "  Files:")
		for _, f := range n.Files {
			fmt.Fprintf(w, "    - %s (%s)\n", f.Path, f.Kind)
		}
	}

	fmt.Fprintln(w, "\n=== Targets ===")
	for _, t := range cfg.Targets {
		debounce := t.Debounce.String()
		if t.Debounce == 0 {
			debounce = "send once"
		}
		fmt.Fprintf(w, "\n[%s]\n", t.Name)
		fmt.Fprintf(w, "  Send:     %s\n", t.Send)
		fmt.Fprintf(w, "  Debounce: %s\n", debounce)
	}

	fmt.Fprintln(w, "\n=== Monitored Files ===")
	for _, f := range cfg.Files {
		fmt.Fprintf(w, "  %-6s %s\n", f.Kind, f.Path)
	}
	fmt.Fprintf(w, "\nPoll interval: %s, status read interval: %s\n",
		settings.PollInterval, settings.StatusReadInterval)
}

func describeField(f domain.Field) string {
	if f.Executable {
		return "exec " + f.Value
	}
	return fmt.Sprintf("%q", f.Value)
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("logmonitor %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
