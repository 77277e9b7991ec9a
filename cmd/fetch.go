package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
	"github.com/ralverson/vela/internal/services"
)

var (
	fetchDest       string
	fetchNoProgress bool
)

// fetchCmd retrieves complete data product files.
var fetchCmd = &cobra.Command{
	Use:   "fetch <product-id>...",
	Short: "Download complete data product files",
	Long: `Download complete data product files from the archive.

Each product identifier is resolved through DataLink to an authenticated
access token, the tokens are submitted to the archive's async retrieval
service in batches, and the resulting files are streamed to the
destination directory as each server-side job completes.

Products the account cannot access are skipped with a warning.

Examples:
  # Download two image cubes
  vela fetch cube-12345 cube-12346

  # Download into a specific directory
  vela fetch cube-12345 --dest /data/cubes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchDest, "dest", "", "destination directory (default from config)")
	fetchCmd.Flags().BoolVar(&fetchNoProgress, "no-progress", false, "disable progress indicators")
}

func runFetch(cmd *cobra.Command, args []string) error {
	app, err := newArchiveApp()
	if err != nil {
		return err
	}

	serviceURL, tokens, err := app.resolveTokens(args, models.AsyncService)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return lib.ErrNoTokens()
	}

	var jobs []*services.CreatedJob
	for _, chunk := range chunkTokens(tokens) {
		job, err := app.jobs.CreateJob(serviceURL, chunk)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	dest := fetchDest
	if dest == "" {
		dest = app.config.DestinationDir
	}

	showProgress := !fetchNoProgress && len(jobs) == 1
	runner := app.bulkRunner(showProgress)
	outcomes := runner.RunAll(cmd.Context(), jobs, dest)
	return reportOutcomes(app, runner, outcomes)
}
