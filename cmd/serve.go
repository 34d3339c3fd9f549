package cmd

import (
	"github.com/spf13/cobra"

	"cnpjscraper/config"
	"cnpjscraper/logger"
	"cnpjscraper/record"
	"cnpjscraper/server"
)

var serveFlagKeys = map[string]string{
	"output-dir": "output.dir",
	"port":       "server.port",
}

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve saved records over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, serveFlagKeys)
			if err != nil {
				return err
			}
			log := logger.FromContext(cmd.Context())
			defer func() { _ = log.Sync() }()

			srv := server.New(record.NewStore(cfg.Output.Dir), log)
			return srv.Run(cmd.Context(), ":"+cfg.Server.Port)
		},
	}

	cmd.Flags().String("output-dir", config.DefaultOutputDir, "directory records are read from")
	cmd.Flags().String("port", config.DefaultServerPort, "port to listen on")

	return cmd
}
