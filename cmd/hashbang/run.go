package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/keepmind9/hashbang/internal/command"
	"github.com/keepmind9/hashbang/internal/console"
	"github.com/keepmind9/hashbang/internal/core"
	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/internal/modules"
	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/keepmind9/hashbang/pkg/constants"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run hashbang with the operator console",
		Long: `Run hashbang: load the configuration, autostart instances and read
operator commands from standard input until quit or a termination signal.`,
		Run: func(cmd *cobra.Command, args []string) {
			interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
			if err := runService(cmd.Context(), configFile, os.Stdin, cmd.OutOrStdout(), interactive); err != nil {
				log.Fatalf("hashbang: %v", err)
			}
		},
	}
)

// newTransport builds the transport adapter for an instance definition
func newTransport(cfg core.InstanceConfig) (transport.Transport, error) {
	switch cfg.Protocol {
	case core.ProtocolIRC:
		return transport.NewIRCTransport(cfg.IRCConfig(Version)), nil
	case core.ProtocolDiscord:
		return transport.NewDiscordTransport(cfg.Token), nil
	case core.ProtocolTelegram:
		return transport.NewTelegramTransport(cfg.Token), nil
	default:
		return nil, fmt.Errorf("%w: unsupported protocol '%s'", core.ErrInvalidInstance, cfg.Protocol)
	}
}

func defaultModules() []command.Module {
	return modules.Defaults(Version)
}

// runService blocks until the operator quits or ctx is cancelled by a signal
func runService(ctx context.Context, path string, in io.Reader, out io.Writer, interactive bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := core.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	con := console.New(out)
	con.Banner(Version)

	if err := logger.InitLogger(cfg.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"config_file": path,
		"log_level":   cfg.Logging.Level,
		"log_file":    cfg.Logging.File,
		"instances":   len(cfg.Instances),
	}).Info("logger-initialized")

	metrics := core.NewMetrics(prometheus.DefaultRegisterer)
	if err := metrics.Register(); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	supervisor := core.NewSupervisor(
		core.WithDeathHandler(con.InstanceDied),
		core.WithCleanupHandler(con.InstanceCleanedUp),
		core.WithSupervisorMetrics(metrics),
	)
	controller := core.NewController(cfg, newTransport,
		core.WithModules(defaultModules),
		core.WithSupervisor(supervisor),
		core.WithControllerMetrics(metrics),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Status.Listen != "" {
		server := core.NewStatusServer(cfg.Status.Listen, controller, prometheus.DefaultGatherer)
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultStopTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.WithField("error", err).Warn("status-server-shutdown-failed")
			}
		}()
		con.Info("Status server listening on %s", server.Addr())
	}

	watcher, err := core.NewConfigWatcher(path, controller, con.ConfigReloaded)
	if err != nil {
		logger.WithField("error", err).Warn("config-watcher-unavailable")
	} else if err := watcher.Start(ctx); err != nil {
		logger.WithField("error", err).Warn("config-watcher-unavailable")
		watcher.Stop()
	} else {
		defer watcher.Stop()
	}

	repl := console.NewREPL(controller, in, con,
		console.WithPrompt(interactive),
		console.WithConfigPath(path),
	)
	if cfg.AutoStart {
		repl.AutoStart()
	}

	done := make(chan bool, 1)
	go func() { done <- repl.Run(ctx) }()

	select {
	case <-ctx.Done():
	case quit := <-done:
		if quit {
			logger.Info("hashbang-stopped")
			return nil
		}
		// Input closed, keep serving until a signal arrives
		<-ctx.Done()
	}

	logger.Info("shutdown-requested")
	con.Info("All instances are going down for quit...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultStopTimeout)
	defer cancel()
	for _, res := range controller.Shutdown(shutdownCtx) {
		if res.Err != nil {
			con.Error("Instance stop error for '%s': %v", res.Name, res.Err)
		}
	}
	logger.Info("hashbang-stopped")
	return nil
}

func init() {
	runCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
}
