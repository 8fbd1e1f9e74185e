package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/Belphemur/zipfetch/internal/config"
	"github.com/Belphemur/zipfetch/internal/metrics"
	"github.com/Belphemur/zipfetch/internal/models"
	"github.com/Belphemur/zipfetch/internal/report"
	"github.com/Belphemur/zipfetch/internal/services"
)

const sentryFlushTimeout = 2 * time.Second

// fetchFailedError marks a run whose failure has already been printed as the report line.
type fetchFailedError struct {
	err error
}

func (e *fetchFailedError) Error() string { return e.err.Error() }
func (e *fetchFailedError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "zipfetch <url> <target-dir>",
		Short: "Download a ZIP archive and extract it into a directory",
		Long: `zipfetch downloads a ZIP archive over HTTP into a temporary file,
verifies it, extracts every entry into the target directory and removes the
temporary file. Exactly one result line is printed on stdout; logs go to stderr.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Reload(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return run(cmd, models.FetchRequest{URL: args[0], TargetDir: args[1]}, noColor)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "Path to a config file (default: ./config.yaml or ./config/config.yaml)")
	flags.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("temp-dir", "", "Directory for the temporary archive (default: working directory)")
	flags.Int64("max-archive-size", 0, "Maximum archive size in bytes, 0 for unlimited")
	flags.String("proxy", "", "Proxy URL used for the download")
	flags.String("metrics-textfile", "", "Write Prometheus metrics to this file after the run")
	flags.BoolVar(&noColor, "no-color", false, "Disable coloured output")

	return cmd
}

func run(cmd *cobra.Command, req models.FetchRequest, noColor bool) error {
	cfg := config.GetConfig()
	logger := config.GetLogger()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			logger.Warn().Err(err).Msg("Failed to initialise Sentry")
		} else {
			defer sentry.Flush(sentryFlushTimeout)
		}
	}

	fetcher, err := services.NewArchiveFetcherFromConfig(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close archive fetcher")
		}
	}()

	result, fetchErr := fetcher.FetchAndExtract(cmd.Context(), req)

	printer := report.NewPrinter(cmd.OutOrStdout(), noColor)
	if err := printer.Print(result, req.TargetDir, fetchErr); err != nil {
		logger.Error().Err(err).Msg("Failed to print report")
	}

	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Error().Err(err).Str("path", cfg.Metrics.Textfile).Msg("Failed to write metrics textfile")
	}

	if fetchErr != nil {
		if cfg.SentryDSN != "" && cmd.Context().Err() == nil {
			sentry.CaptureException(fetchErr)
		}
		logger.Error().Err(fetchErr).Str("url", req.URL).Msg("Fetch failed")
		return &fetchFailedError{err: fetchErr}
	}
	if !result.Success {
		return &fetchFailedError{err: errors.New("fetch did not succeed")}
	}
	return nil
}
