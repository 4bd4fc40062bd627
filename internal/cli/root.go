package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"signal-trader/internal/bot"
	"signal-trader/internal/config"
	"signal-trader/internal/logging"
	"signal-trader/internal/metaapi"
	"signal-trader/internal/trading"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "signal-trader",
		Short: "Telegram signal bot for MetaTrader accounts",
		Long: `signal-trader turns free-form Telegram trade signals into orders on a
MetaTrader account through the MetaApi cloud API.

It parses signals into validated trades, derives pip distances and risk
metrics from the live account balance, and sequences the remote account
lifecycle (deploy, connect, synchronize, submit) for each trade.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newParseCmd(app))
	rootCmd.AddCommand(newRunCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("signal-trader v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("MetaApi")
	output.Printf("  Account ID:       %s\n", cfg.MetaAPI.AccountID)
	output.Printf("  Provisioning URL: %s\n", cfg.MetaAPI.ProvisioningURL)
	output.Printf("  Client URL:       %s\n", cfg.MetaAPI.ClientURL)
	output.Printf("  Connect Timeout:  %s\n", cfg.MetaAPI.ConnectTimeout)
	output.Printf("  Sync Timeout:     %s\n", cfg.MetaAPI.SyncTimeout)
	output.Println()

	output.Bold("Telegram")
	output.Printf("  Allowed User:     %s\n", cfg.Telegram.AllowedUser)
	output.Printf("  Poll Timeout:     %s\n", cfg.Telegram.PollTimeout)
	output.Println()

	output.Bold("Trading")
	output.Printf("  Risk Factor:      %.2f\n", cfg.Trading.RiskFactor)

	return nil
}

// newRunCmd starts the Telegram bot and blocks until interrupted.
func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the Telegram signal bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Config.ValidateForTrading(); err != nil {
				return err
			}

			account := metaapi.NewRESTClient(app.Config.MetaAPI, app.Logger)
			executor := trading.NewExecutor(account, trading.Timeouts{
				Connect:     app.Config.MetaAPI.ConnectTimeout,
				Synchronize: app.Config.MetaAPI.SyncTimeout,
			}, app.Logger)
			b := bot.New(app.Config.Telegram, app.Config.Trading.RiskFactor, executor, app.Logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := b.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
