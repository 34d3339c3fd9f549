package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cnpjscraper/browser"
	"cnpjscraper/cache"
	"cnpjscraper/cnpj"
	"cnpjscraper/config"
	"cnpjscraper/logger"
	"cnpjscraper/lookup"
	"cnpjscraper/record"
	"cnpjscraper/snapshot"
)

var lookupFlagKeys = map[string]string{
	"output-dir":        "output.dir",
	"profile-dir":       "browser.profile_dir",
	"challenge-timeout": "browser.challenge_timeout",
	"snapshot":          "snapshot.mode",
	"strict":            "output.strict",
	"redis-addr":        "cache.redis_addr",
}

func (a *app) lookupCommand() *cobra.Command {
	var skipValidation bool

	cmd := &cobra.Command{
		Use:   "lookup [cnpj]",
		Short: "Look up one CNPJ and save its registration record",
		Example: `  cnpjscraper lookup 24.276.421/0001-08
  CNPJ=24276421000108 cnpjscraper lookup --snapshot gzip`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, lookupFlagKeys)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			log := logger.FromContext(ctx)
			defer func() { _ = log.Sync() }()

			raw := cfg.CNPJ
			if len(args) == 1 {
				raw = args[0]
			}
			id := cnpj.Identifier(raw)
			if id.String() == "" {
				return errors.New("a CNPJ is required, pass it as an argument or set CNPJ")
			}
			if !skipValidation {
				if err := id.Validate(); err != nil {
					return err
				}
			}

			c := cache.New(cache.Options{
				Addr:     cfg.Cache.RedisAddr,
				Password: cfg.Cache.RedisPassword,
				DB:       cfg.Cache.RedisDB,
				TTL:      cfg.Cache.TTL,
			}, log)
			defer c.Close()

			svc := newLookupService(cfg, log, c)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Abrindo o navegador para consultar o CNPJ: %s...\n", id.Format())

			result, err := svc.Run(ctx, id)
			return report(cmd, id, result, err)
		},
	}

	cmd.Flags().String("output-dir", config.DefaultOutputDir, "directory records are written to")
	cmd.Flags().String("profile-dir", config.DefaultProfileDir, "Chrome profile directory")
	cmd.Flags().Duration("challenge-timeout", 0, "give up waiting for the captcha after this long (0 waits forever)")
	cmd.Flags().String("snapshot", string(snapshot.ModeNone), "save the result page: none, html, gzip, br or zstd")
	cmd.Flags().Bool("strict", false, "fail instead of saving a record with missing fields")
	cmd.Flags().String("redis-addr", "", "Redis address for the record cache (empty disables it)")
	cmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "accept identifiers with bad check digits")

	return cmd
}

// report prints the operator-facing outcome of a lookup or extraction.
func report(cmd *cobra.Command, id cnpj.Identifier, result *lookup.Outcome, err error) error {
	if errors.Is(err, lookup.ErrNoData) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Não foi possível extrair os dados. Verifique se a página está correta.")
	}
	if err != nil {
		logger.FromContext(cmd.Context()).Error("lookup failed", logger.String("cnpj", id.Digits()), logger.Err(err))
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Dados extraídos e salvos em %s\n", result.Path)
	return nil
}

func newLookupService(cfg *config.Config, log logger.Logger, c *cache.Cache) *lookup.Service {
	fetcher := browser.NewFetcher(browser.Options{
		PortalURL:        cfg.Portal.URL,
		InputSelector:    cfg.Portal.InputSelector,
		UserAgent:        cfg.Portal.UserAgent,
		AcceptLanguage:   cfg.Portal.AcceptLanguage,
		ProfileDir:       cfg.Browser.ProfileDir,
		ExecPath:         cfg.Browser.ExecPath,
		ChallengeTimeout: cfg.Browser.ChallengeTimeout,
		Settle:           500 * time.Millisecond,
		Logger:           log,
	})

	// Validate already rejected unknown modes
	mode, _ := snapshot.ParseMode(cfg.Snapshot.Mode)

	return lookup.NewService(fetcher, record.NewStore(cfg.Output.Dir),
		lookup.WithSnapshots(&snapshot.Writer{Dir: cfg.Snapshot.Dir, Mode: mode}),
		lookup.WithCache(c),
		lookup.WithStrict(cfg.Output.Strict),
		lookup.WithLogger(log),
	)
}
