package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"cnpjscraper/cnpj"
	"cnpjscraper/config"
	"cnpjscraper/logger"
	"cnpjscraper/lookup"
	"cnpjscraper/record"
)

var extractFlagKeys = map[string]string{
	"output-dir": "output.dir",
	"strict":     "output.strict",
}

func (a *app) extractCommand() *cobra.Command {
	var rawID string

	cmd := &cobra.Command{
		Use:   "extract <snapshot-file>",
		Short: "Extract a record from a saved result page without opening a browser",
		Long: `extract re-runs field extraction over a page saved by "lookup --snapshot".
The compression is chosen from the file extension (.html, .html.gz, .html.br
or .html.zst). The CNPJ is taken from the file name unless --cnpj is set.`,
		Example: `  cnpjscraper extract CNPJ_extraidos/DadosCNPJ_24276421000108.html.gz`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, extractFlagKeys)
			if err != nil {
				return err
			}
			log := logger.FromContext(cmd.Context())
			defer func() { _ = log.Sync() }()

			path := args[0]
			id := cnpj.Identifier(rawID)
			if id.Digits() == "" {
				id = cnpj.Identifier(cnpj.Normalize(filepath.Base(path)))
			}
			if id.Digits() == "" {
				return errors.New("cannot tell the CNPJ from the file name, pass --cnpj")
			}

			svc := lookup.NewService(
				lookup.SnapshotFetcher{Path: path, URL: cfg.Portal.URL},
				record.NewStore(cfg.Output.Dir),
				lookup.WithStrict(cfg.Output.Strict),
				lookup.WithLogger(log),
			)

			fmt.Fprintf(cmd.OutOrStdout(), "Extraindo dados de %s para o CNPJ: %s...\n", path, id.Format())
			result, err := svc.Run(cmd.Context(), id)
			return report(cmd, id, result, err)
		},
	}

	cmd.Flags().StringVar(&rawID, "cnpj", "", "CNPJ the page belongs to (default is the digits in the file name)")
	cmd.Flags().String("output-dir", config.DefaultOutputDir, "directory records are written to")
	cmd.Flags().Bool("strict", false, "fail instead of saving a record with missing fields")

	return cmd
}
