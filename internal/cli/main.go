package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forPelevin/mdvid/internal/config"
	"github.com/forPelevin/mdvid/internal/diag"
	"github.com/forPelevin/mdvid/internal/logging"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Execute runs the command line and returns the process exit status.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return diag.ExitCode(err)
	}
	return 0
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg *config.Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var (
		configPath string
		logLevel   string
	)

	root := &cobra.Command{
		Use:           "mdvid",
		Short:         "Render annotated Markdown transcripts into edited videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			log, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/mdvid/config.toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newRenderCommand(a),
		newPlanCommand(a),
		newConvertCommand(a),
		newCacheCommand(a),
	)
	return root
}
