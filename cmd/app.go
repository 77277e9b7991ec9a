package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
	"github.com/ralverson/vela/internal/services"
)

// maxTokensPerJob caps the number of ID parameters submitted to one async
// job. Extraction requests over many products are split into multiple jobs
// the server can schedule independently.
const maxTokensPerJob = 10

// archiveApp bundles the configured clients shared by the subcommands.
type archiveApp struct {
	config    *models.ProjectConfig
	endpoints models.EndpointConfig
	creds     models.Credentials
	logger    *lib.Logger
	http      *services.HTTPClient
	resolver  *services.DataLinkResolver
	jobs      *services.JobClient
}

// newArchiveApp loads configuration, resolves credentials and wires up the
// service clients.
func newArchiveApp() (*archiveApp, error) {
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	logger := lib.NewLogger(lib.LogLevelInfo)
	if verbose {
		logger.SetLevel(lib.LogLevelDebug)
	}
	if path := services.GetConfigFilePath(); path != "" {
		logger.Debug("Using config file", "path", path)
	}

	creds, err := services.ResolveCredentials(config.Archive)
	if err != nil {
		return nil, err
	}

	endpoints, err := models.EndpointsFor(config.Archive.Environment)
	if err != nil {
		return nil, err
	}

	httpClient := services.NewHTTPClient(0, config.Retry, logger)

	return &archiveApp{
		config:    config,
		endpoints: endpoints,
		creds:     creds,
		logger:    logger,
		http:      httpClient,
		resolver:  services.NewDataLinkResolver(endpoints, creds, httpClient, logger),
		jobs:      services.NewJobClient(httpClient, logger),
	}, nil
}

func (a *archiveApp) pollInterval() time.Duration {
	return pollIntervalFrom(a.config)
}

func pollIntervalFrom(config *models.ProjectConfig) time.Duration {
	return time.Duration(config.Archive.PollIntervalSeconds) * time.Second
}

func (a *archiveApp) downloader(showProgress bool) *services.Downloader {
	return services.NewDownloader(a.http, a.logger, showProgress)
}

func (a *archiveApp) bulkRunner(showProgress bool) *services.BulkRunner {
	return services.NewBulkRunner(a.jobs, a.downloader(showProgress), a.logger, a.pollInterval())
}

// resolveTokens resolves every product ID against the named service and
// aggregates the tokens. Products the account has no access to are logged
// and dropped; the service URL comes from the first successful resolution,
// falling back to the environment's default SODA endpoint.
func (a *archiveApp) resolveTokens(productIDs []string, service models.ServiceName) (string, []models.AccessToken, error) {
	serviceURL := ""
	tokens := make([]models.AccessToken, 0, len(productIDs))

	for _, id := range productIDs {
		access, err := a.resolver.Resolve(id, service)
		if err != nil {
			if errors.Is(err, services.ErrNoAccess) {
				a.logger.Warn("Skipping product without access", "product", id, "service", service)
				continue
			}
			return "", nil, err
		}
		if serviceURL == "" {
			serviceURL = access.ServiceURL
		}
		tokens = append(tokens, access.Token)
	}

	if serviceURL == "" {
		serviceURL = a.endpoints.SodaAsyncURL()
	}
	return serviceURL, tokens, nil
}

// chunkTokens splits tokens into groups of at most maxTokensPerJob.
func chunkTokens(tokens []models.AccessToken) [][]models.AccessToken {
	var chunks [][]models.AccessToken
	for len(tokens) > 0 {
		n := maxTokensPerJob
		if len(tokens) < n {
			n = len(tokens)
		}
		chunks = append(chunks, tokens[:n])
		tokens = tokens[n:]
	}
	return chunks
}

// parseSkyPos parses RA and Dec table cells in decimal degrees.
func parseSkyPos(ra, dec string) (models.SkyPos, error) {
	raDeg, err := strconv.ParseFloat(ra, 64)
	if err != nil {
		return models.SkyPos{}, fmt.Errorf("invalid RA %q: %w", ra, err)
	}
	decDeg, err := strconv.ParseFloat(dec, 64)
	if err != nil {
		return models.SkyPos{}, fmt.Errorf("invalid Dec %q: %w", dec, err)
	}
	return models.SkyPos{RA: raDeg, Dec: decDeg}, nil
}

// reportOutcomes prints a per-job summary plus the batch transfer totals
// and returns an error when any job in the batch failed.
func reportOutcomes(app *archiveApp, runner *services.BulkRunner, outcomes []models.JobOutcome) error {
	failed := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++
			fmt.Printf("✗ %s: %v\n", outcome.Location, outcome.Err)
			fmt.Printf("  results page: %s\n", app.endpoints.ResultsPageURL(outcome.Location))
			continue
		}
		fmt.Printf("✓ %s: %d files\n", outcome.Location, len(outcome.Files))
	}
	fmt.Println(runner.Meter().Summary())
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(outcomes))
	}
	return nil
}
