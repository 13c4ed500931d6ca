// Package commands wires the webvisor-server command line.
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/webvisor/webvisor/internal/config"
	"github.com/webvisor/webvisor/internal/fileserver"
	"github.com/webvisor/webvisor/pkg/logger"
)

// NewRootCommand builds the webvisor-server root command. The server is the
// root action itself so the invocation contract stays exactly
// "webvisor-server <port> <path>...", which is how sessions spawn it.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webvisor-server <port> <path>...",
		Short: "Static file server for browser test sessions",
		Long: `webvisor-server binds the given port and serves the given paths over HTTP.
URLs are resolved relative to the common base directory of the paths.

The process does not exit on its own; the spawning session terminates it.

Example:
  webvisor-server 8080 /tmp/fixtures/page.html /tmp/fixtures/assets`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveExecute,
	}

	cmd.Flags().String("config", "", "Path to a TOML or YAML config file")
	cmd.Flags().String("host", "", "Host to bind (default from config)")
	cmd.Flags().Int64("cache-bytes", -1, "In-memory cache cap in bytes (default from config)")
	cmd.Flags().Bool("no-cors", false, "Disable CORS headers")
	cmd.Flags().Bool("quiet", false, "Disable logging")

	cmd.AddCommand(VersionCmd())
	cmd.AddCommand(ConfigCmd())

	return cmd
}

func serveExecute(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[0])
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", args[0])
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.ColorLogs, cfg.DisableLogs, cfg.TimeFormatLogs)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	srv, err := fileserver.New(fileserver.Config{
		Host:         cfg.Host,
		Port:         port,
		Roots:        args[1:],
		CacheBytes:   cfg.CacheBytes,
		DisableCORS:  cfg.DisableCORS,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, log)
	if err != nil {
		return err
	}

	if _, err := srv.Start(); err != nil {
		return err
	}

	log.Info("serving",
		zap.Int("port", port),
		zap.Strings("paths", args[1:]))

	// Runs until killed by the session, or interrupted when run by hand.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info("shutting down", zap.String("signal", sig.String()))
	return srv.Shutdown(cmd.Context())
}

// loadConfig resolves the effective config: file and environment first,
// then explicit flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Host = host
	}
	if cacheBytes, _ := cmd.Flags().GetInt64("cache-bytes"); cacheBytes >= 0 {
		cfg.CacheBytes = cacheBytes
	}
	if noCORS, _ := cmd.Flags().GetBool("no-cors"); noCORS {
		cfg.DisableCORS = true
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		cfg.DisableLogs = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
