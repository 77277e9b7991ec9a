package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
	"github.com/ralverson/vela/internal/services"
)

// spectralCubeMarker selects the restored spectral-line cubes among the
// products an SIA2 query returns.
const spectralCubeMarker = "spectral.restored.3d"

var (
	spectrumRadius     float64
	spectrumMaxRec     int
	spectrumDest       string
	spectrumNoProgress bool
)

// spectrumCmd extracts spectra at source positions.
var spectrumCmd = &cobra.Command{
	Use:   "spectrum <source-list>",
	Short: "Extract spectra at source positions",
	Long: `Extract one-dimensional spectra at each position in a source list.

The source list has one "RA Dec" pair per line in decimal degrees; blank
lines and '#' comments are skipped. An SIA2 query finds the restored
spectral-line cubes covering the positions, each cube is resolved through
DataLink to a spectrum service token, and the extraction jobs carry one
POS CIRCLE criterion per source.

Examples:
  vela spectrum targets.txt
  vela spectrum targets.txt --radius 0.02 --dest /data/spectra`,
	Args: cobra.ExactArgs(1),
	RunE: runSpectrum,
}

func init() {
	rootCmd.AddCommand(spectrumCmd)

	spectrumCmd.Flags().Float64Var(&spectrumRadius, "radius", 0.01, "extraction radius in degrees")
	spectrumCmd.Flags().IntVar(&spectrumMaxRec, "maxrec", 0, "cap on SIA2 result rows (0 = server default)")
	spectrumCmd.Flags().StringVar(&spectrumDest, "dest", "", "destination directory (default from config)")
	spectrumCmd.Flags().BoolVar(&spectrumNoProgress, "no-progress", false, "disable progress indicators")
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return lib.ErrFileSystem(args[0], err)
	}
	sources, err := models.ParseSourceList(f)
	_ = f.Close()
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("source list %s contains no positions", args[0])
	}

	app, err := newArchiveApp()
	if err != nil {
		return err
	}

	criteria := models.PosCriteria(sources, spectrumRadius)

	sia := services.NewSIA2Client(app.endpoints, app.creds, app.http, app.logger)
	productIDs, err := spectralCubeProducts(sia, criteria)
	if err != nil {
		return err
	}
	if len(productIDs) == 0 {
		return fmt.Errorf("no spectral cubes cover the requested positions")
	}

	serviceURL, tokens, err := app.resolveTokens(productIDs, models.SpectrumService)
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
		if err := job.AddParams("POS", criteria); err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	dest := spectrumDest
	if dest == "" {
		dest = app.config.DestinationDir
	}

	showProgress := !spectrumNoProgress && len(jobs) == 1
	runner := app.bulkRunner(showProgress)
	outcomes := runner.RunAll(cmd.Context(), jobs, dest)
	return reportOutcomes(app, runner, outcomes)
}

// spectralCubeProducts runs the SIA2 discovery query and returns the
// distinct spectral cube product IDs covering the criteria.
func spectralCubeProducts(sia *services.SIA2Client, criteria []string) ([]string, error) {
	doc, err := sia.FindProducts(criteria, spectrumMaxRec)
	if err != nil {
		return nil, err
	}
	table, err := doc.FirstTable()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, row := range table.Rows() {
		filename, err := row.Field("filename")
		if err != nil {
			return nil, err
		}
		if !strings.Contains(filename, spectralCubeMarker) {
			continue
		}
		id, err := row.Field("obs_publisher_did")
		if err != nil {
			return nil, err
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
