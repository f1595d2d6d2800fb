package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/backupwatch/backupwatch/internal/config"
	"github.com/backupwatch/backupwatch/internal/history"
	"github.com/backupwatch/backupwatch/internal/logging"
	"github.com/backupwatch/backupwatch/internal/monitor"
	"github.com/backupwatch/backupwatch/internal/notify"
)

// checkOptions holds CLI flags for the check command.
type checkOptions struct {
	configPath  string
	envFile     string
	historyPath string
	workers     int
	noProgress  bool
	dryRun      bool
}

// newCheckCmd creates the check subcommand.
func newCheckCmd() *cobra.Command {
	opts := &checkOptions{
		configPath: "config.yaml",
		envFile:    ".env",
		workers:    runtime.NumCPU(),
	}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run all configured backup checks and send notifications",
		Long: `Verifies every configured backup directory: accessibility, presence of
recent files, and total size against the configured minimum. Results go to
the configured notification channels (email, Pushover, Uptime Kuma).

Use --dry-run to print the report without sending anything.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCheck(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", opts.configPath, "Path to the YAML configuration file")
	cmd.Flags().StringVar(&opts.envFile, "env", opts.envFile, "Dotenv file with notification credentials")
	cmd.Flags().StringVar(&opts.historyPath, "history", "", "Path to the state database (enables transition tracking)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", opts.workers, "Number of parallel scan workers")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Run checks but send no notifications")

	return cmd
}

// runCheck executes the monitoring pipeline: load config → run checks → report.
func runCheck(opts *checkOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	log, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}

	store, err := history.Open(opts.historyPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	m := monitor.New(cfg, logging.WithComponent(log, "monitor"), store, opts.workers, !opts.noProgress)
	report := m.Run()

	printReport(os.Stdout, report)

	if opts.dryRun {
		log.Info("dry run, skipping notifications")
	} else {
		m.Dispatch(report, buildNotifiers(cfg, opts.envFile, log))
	}

	if !report.AllOK() {
		return fmt.Errorf("%d of %d checks failed", report.Failed(), len(report.Results))
	}
	return nil
}

// buildNotifiers assembles the channels that are actually configured. A
// channel with missing or broken credentials is skipped with a warning so
// one misconfigured integration does not silence the others.
func buildNotifiers(cfg *config.Config, envFile string, log *logrus.Logger) monitor.Notifiers {
	var n monitor.Notifiers

	if len(cfg.ToEmail) > 0 {
		smtpCfg, err := notify.LoadSMTPConfig(envFile)
		if err != nil {
			log.Warnf("email disabled: %v", err)
		} else {
			n.Email = notify.NewEmailNotifier(smtpCfg, logging.WithComponent(log, "email"))
		}
	}

	pushover, err := notify.NewPushover("Backup Monitor", envFile, "", logging.WithComponent(log, "pushover"))
	if err != nil {
		log.Warnf("pushover disabled: %v", err)
	} else {
		n.Pushover = pushover
	}

	n.KumaURL = cfg.UptimeKumaURL

	return n
}
