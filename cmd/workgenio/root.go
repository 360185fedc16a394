package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"workgenio/internal/config"
	appctx "workgenio/internal/core/context"
	"workgenio/pkg/logger"
)

type appKey struct{}

// cli is the command tree together with the app its pre-run builds.
type cli struct {
	root *cobra.Command
	app  *app
}

// Execute runs the command line and closes the app afterwards. Post-run hooks
// are not used because cobra skips them when a command fails.
func (c *cli) Execute() error {
	defer func() {
		if c.app != nil {
			c.app.Close()
		}
	}()
	return c.root.Execute()
}

func newCLI() *cli {
	c := &cli{}
	v := viper.New()

	root := &cobra.Command{
		Use:           "workgenio",
		Short:         "Invoice numbering and referential integrity for WorkGenio",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			logCfg := cfg.Logging.LoggerConfig()
			logCfg.OutputPaths = []string{"stderr"}
			log, err := logger.New(logCfg)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}

			logger.SetDefault(log)

			ctx := appctx.WithTrace(cmd.Context(), appctx.NewTraceContext(appctx.OriginCLI, "", ""))
			ctx = logger.WithLogger(ctx, log)

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				_ = log.Sync()
				return err
			}
			c.app = a
			cmd.SetContext(context.WithValue(ctx, appKey{}, a))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ./workgenio.yaml)")
	flags.String("driver", config.DriverPostgres, "storage driver: postgres or memory")
	flags.String("dsn", "", "PostgreSQL connection string")
	flags.String("log-level", "info", "log level: debug, info, warn, error")

	_ = v.BindPFlag("config", flags.Lookup("config"))
	_ = v.BindPFlag("database.driver", flags.Lookup("driver"))
	_ = v.BindPFlag("database.dsn", flags.Lookup("dsn"))
	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))

	root.AddCommand(
		newServeCmd(v),
		newMigrateCmd(),
		newInvoiceCmd(),
		newDepsCmd(),
		newDeleteCmd(),
		newPurgeCmd(),
	)
	c.root = root
	return c
}

func appFrom(cmd *cobra.Command) *app {
	if cmd.Context() == nil {
		return nil
	}
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}
