// Package cmd implements the cnpjscraper command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cnpjscraper/config"
	"cnpjscraper/logger"
)

// Version is set at build time with -ldflags "-X cnpjscraper/cmd.Version=...".
var Version = "dev"

// app holds state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	debug   bool
}

// Execute runs the CLI with os.Args.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "cnpjscraper",
		Short: "Fetch CNPJ registration records from Receita Federal",
		Long: `cnpjscraper opens the Receita Federal CNPJ lookup page in a visible
browser, fills in the identifier and waits for you to solve the captcha.
The registration fields on the result page are saved as JSON.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(a.lookupCommand())
	root.AddCommand(a.serveCommand())
	root.AddCommand(a.extractCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cnpjscraper version %s\n", Version)
		},
	})

	return root
}

// load reads the config file, binds the command's flags onto their config
// keys and builds the logger. The logger is stored in the command context.
func (a *app) load(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, error) {
	if err := config.ReadInConfig(a.v, a.cfgFile); err != nil {
		return nil, err
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("failed to bind %s flag: %w", f.Name, err)
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}

	cfg, err := config.FromViper(a.v)
	if err != nil {
		return nil, err
	}
	if a.debug {
		cfg.Log.Level = "debug"
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return cfg, nil
}
