// ghostshell is an interactive shell that accepts both literal commands
// and plain English. Literal commands run directly; everything else goes
// through a translation gateway and comes back as staged shell commands.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ghostshell/internal/config"
	"ghostshell/internal/executor"
	"ghostshell/internal/inputbuf"
	"ghostshell/internal/shell"
	"ghostshell/internal/state"
	"ghostshell/internal/translate"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		verbose bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ghostshell",
		Short: "An interactive shell that speaks both commands and plain English",
		Long: `ghostshell is an interactive command shell with natural-language
translation. Type shell commands and they run as-is; type plain English
and it is translated into commands you can confirm before they run.

Reference files with @path (globs work), pull in the clipboard with
{clipboard}, and pipe data in on stdin to make it part of the request.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cfgPath, verbose, timeout)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"config file (default ~/.ghostshell/config.yaml)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"debug logging to stderr")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0,
		"command timeout override, e.g. 60s")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ghostshell version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ghostshell %s\n", version)
		},
	}
}

func runShell(cfgPath string, verbose bool, timeout time.Duration) error {
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}

	cfg, err := config.LoadOrCreate(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging.Level, verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	snapshot := func() *config.Config { return cfg }
	if watcher, werr := config.NewWatcher(cfgPath, cfg, logger); werr != nil {
		logger.Warn("config hot reload disabled", zap.Error(werr))
	} else {
		defer watcher.Close()
		snapshot = watcher.Current
	}
	if timeout > 0 {
		inner := snapshot
		snapshot = func() *config.Config {
			override := *inner()
			override.Execution.DefaultTimeout = timeout.String()
			return &override
		}
	}

	st, err := state.New()
	if err != nil {
		return err
	}

	buffer := inputbuf.New(st, logger)
	exec := executor.New(st, logger, executor.Options{
		Timeout:        snapshot().CommandTimeout(),
		MaxOutputBytes: cfg.Execution.MaxOutputBytes,
	})
	gateway := translate.NewHTTPGateway(translate.GatewayConfig{
		APIKey:  cfg.Translator.APIKey,
		BaseURL: cfg.Translator.BaseURL,
		Model:   cfg.Translator.Model,
		Timeout: cfg.TranslatorTimeout(),
	}, logger)

	loop := shell.New(st, buffer, exec, gateway, logger, shell.Options{
		Version: version,
		Config:  snapshot,
	})

	code, err := loop.Run(context.Background())
	if err != nil {
		return err
	}
	if code != 0 {
		logger.Sync()
		os.Exit(code)
	}
	return nil
}

// buildLogger writes structured logs to a file next to the config so the
// interactive UI stays clean; --verbose switches to console debug output.
func buildLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return zcfg.Build()
	}

	lvl := zapcore.InfoLevel
	_ = lvl.UnmarshalText([]byte(level))

	logPath := filepath.Join(filepath.Dir(config.DefaultPath()), "ghostshell.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return zap.NewNop(), nil
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{logPath}
	zcfg.ErrorOutputPaths = []string{logPath}
	return zcfg.Build()
}
