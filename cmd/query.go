package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
	"github.com/ralverson/vela/internal/services"
	"github.com/ralverson/vela/internal/ui"
)

var (
	queryOutput    string
	queryAnonymous bool
	queryAsync     bool
	queryDest      string
)

// queryCmd runs ad-hoc ADQL queries.
var queryCmd = &cobra.Command{
	Use:   "query <adql>",
	Short: "Run an ADQL query against the archive's TAP service",
	Long: `Run an ADQL query against the archive's TAP service.

By default the query runs synchronously through the authenticated proxy
and the VOTable result is written to stdout or --output. Anonymous
queries go through the public endpoint and see only released data.

Queries too large for the synchronous endpoint can run asynchronously:
the query becomes a server-side job and its result files are downloaded
when it completes.

Examples:
  # Observation lookup to stdout
  vela query "SELECT * FROM ivoa.obscore WHERE obs_id = '33837'"

  # Save a catalogue extract
  vela query "SELECT * FROM casda.continuum_component" --output components.xml

  # Large query via the async endpoint
  vela query "SELECT * FROM casda.continuum_component" --async`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "write the VOTable result to this file (default stdout)")
	queryCmd.Flags().BoolVar(&queryAnonymous, "anonymous", false, "use the public endpoint without credentials")
	queryCmd.Flags().BoolVar(&queryAsync, "async", false, "run the query as an async job")
	queryCmd.Flags().StringVar(&queryDest, "dest", "", "destination directory for async results (default from config)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	adql := args[0]

	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	logger := lib.NewLogger(lib.LogLevelInfo)
	if verbose {
		logger.SetLevel(lib.LogLevelDebug)
	}
	endpoints, err := models.EndpointsFor(config.Archive.Environment)
	if err != nil {
		return err
	}
	httpClient := services.NewHTTPClient(0, config.Retry, logger)

	var creds *models.Credentials
	if !queryAnonymous {
		resolved, err := services.ResolveCredentials(config.Archive)
		if err != nil {
			return err
		}
		creds = &resolved
	}
	tap := services.NewTAPClient(endpoints, creds, httpClient, logger)

	if queryAsync {
		spinner := ui.NewSpinner("Running async TAP query")
		spinner.Start()
		job, err := tap.AsyncQuery(cmd.Context(), adql, pollIntervalFrom(config))
		spinner.Stop(err == nil)
		if err != nil {
			return err
		}

		dest := queryDest
		if dest == "" {
			dest = config.DestinationDir
		}
		downloader := services.NewDownloader(httpClient, logger, true)
		files, err := downloader.DownloadResults(job, dest)
		if err != nil {
			return err
		}
		for _, file := range files {
			fmt.Println(file)
		}
		return nil
	}

	body, err := tap.SyncQueryBytes(adql)
	if err != nil {
		return err
	}
	if queryOutput == "" {
		_, err = os.Stdout.Write(body)
		return err
	}
	if err := os.WriteFile(queryOutput, body, 0o644); err != nil {
		return lib.ErrFileSystem(queryOutput, err)
	}
	logger.Info("Query result written", "file", queryOutput, "bytes", len(body))
	return nil
}
