package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
	"github.com/ralverson/vela/internal/services"
)

var (
	cutoutRA           float64
	cutoutDec          float64
	cutoutRadius       float64
	cutoutSourceFile   string
	cutoutFluxLimit    float64
	cutoutFreqMinMHz   float64
	cutoutFreqMaxMHz   float64
	cutoutChannels     int
	cutoutChansPerBand int
	cutoutDest         string
	cutoutNoProgress   bool
)

// cutoutCmd extracts cutouts from the image cubes of an observation.
var cutoutCmd = &cobra.Command{
	Use:   "cutout <sbid>",
	Short: "Extract cutouts from an observation's image cubes",
	Long: `Extract spatial cutouts from the restored image cubes of a scheduling
block.

The observation's cube products are discovered with an obscore TAP query,
each product is resolved through DataLink to a cutout service token, and
one POS CIRCLE criterion per target position is attached to the extraction
jobs before they run.

Target positions come from one of:
  --ra/--dec        a single position
  --sources         a file with one "RA Dec" pair per line (decimal degrees)
  --flux-limit      all continuum components brighter than the limit (mJy),
                    found with a catalogue TAP query

A frequency range given with --freq-min/--freq-max (MHz) adds a spectral
BAND criterion as well. With --channels and --channels-per-band the range
is split into per-block BAND criteria so a large cube comes back as
manageable pieces.

Examples:
  # Cutouts around one position
  vela cutout 33837 --ra 333.607 --dec -45.192 --radius 0.1

  # Cutouts around every source in a list
  vela cutout 33837 --sources targets.txt

  # Cutouts around all components brighter than 500 mJy
  vela cutout 33837 --flux-limit 500`,
	Args: cobra.ExactArgs(1),
	RunE: runCutout,
}

func init() {
	rootCmd.AddCommand(cutoutCmd)

	cutoutCmd.Flags().Float64Var(&cutoutRA, "ra", 0, "right ascension in decimal degrees")
	cutoutCmd.Flags().Float64Var(&cutoutDec, "dec", 0, "declination in decimal degrees")
	cutoutCmd.Flags().Float64Var(&cutoutRadius, "radius", 0.1, "cutout radius in degrees")
	cutoutCmd.Flags().StringVar(&cutoutSourceFile, "sources", "", "source list file with RA/Dec per line")
	cutoutCmd.Flags().Float64Var(&cutoutFluxLimit, "flux-limit", 0, "select catalogue components above this peak flux (mJy)")
	cutoutCmd.Flags().Float64Var(&cutoutFreqMinMHz, "freq-min", 0, "lower bound of the spectral range (MHz)")
	cutoutCmd.Flags().Float64Var(&cutoutFreqMaxMHz, "freq-max", 0, "upper bound of the spectral range (MHz)")
	cutoutCmd.Flags().IntVar(&cutoutChannels, "channels", 0, "total channel count of the cube's spectral axis")
	cutoutCmd.Flags().IntVar(&cutoutChansPerBand, "channels-per-band", 0, "split the spectral range into blocks of this many channels")
	cutoutCmd.Flags().StringVar(&cutoutDest, "dest", "", "destination directory (default from config)")
	cutoutCmd.Flags().BoolVar(&cutoutNoProgress, "no-progress", false, "disable progress indicators")
}

func runCutout(cmd *cobra.Command, args []string) error {
	sbid := args[0]

	app, err := newArchiveApp()
	if err != nil {
		return err
	}
	tap := services.NewTAPClient(app.endpoints, &app.creds, app.http, app.logger)

	productIDs, err := cubeProductsForObservation(tap, sbid)
	if err != nil {
		return err
	}
	if len(productIDs) == 0 {
		return fmt.Errorf("no restored image cubes found for scheduling block %s", sbid)
	}

	sources, err := cutoutSources(tap, sbid)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no target positions: use --ra/--dec, --sources or --flux-limit")
	}
	criteria := models.PosCriteria(sources, cutoutRadius)

	serviceURL, tokens, err := app.resolveTokens(productIDs, models.CutoutService)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return lib.ErrNoTokens()
	}

	bands, err := cutoutBands()
	if err != nil {
		return err
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
		if err := job.AddParams("BAND", bands); err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	dest := cutoutDest
	if dest == "" {
		dest = app.config.DestinationDir
	}

	showProgress := !cutoutNoProgress && len(jobs) == 1
	runner := app.bulkRunner(showProgress)
	outcomes := runner.RunAll(cmd.Context(), jobs, dest)
	return reportOutcomes(app, runner, outcomes)
}

// cutoutBands builds the spectral BAND criteria from the frequency flags.
// Returns nil when no range was given, which AddParams treats as a no-op.
func cutoutBands() ([]string, error) {
	if cutoutFreqMinMHz == 0 && cutoutFreqMaxMHz == 0 {
		return nil, nil
	}
	if cutoutFreqMinMHz <= 0 || cutoutFreqMaxMHz <= cutoutFreqMinMHz {
		return nil, fmt.Errorf("invalid spectral range: --freq-min must be > 0 and below --freq-max")
	}

	freqMinHz := cutoutFreqMinMHz * 1e6
	freqMaxHz := cutoutFreqMaxMHz * 1e6

	if cutoutChannels > 0 && cutoutChansPerBand > 0 {
		return models.ChannelBands(freqMinHz, freqMaxHz, cutoutChannels, cutoutChansPerBand), nil
	}
	return []string{models.BandFromFrequencyRange(freqMinHz, freqMaxHz)}, nil
}

// cubeProductsForObservation finds the restored image cube products of a
// scheduling block via obscore.
func cubeProductsForObservation(tap *services.TAPClient, sbid string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT obs_publisher_did FROM ivoa.obscore WHERE obs_id = '%s' "+
			"AND dataproduct_type = 'cube' AND dataproduct_subtype = 'cont.restored.t0'",
		sbid)

	doc, err := tap.SyncQuery(query)
	if err != nil {
		return nil, err
	}
	table, err := doc.FirstTable()
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, row := range table.Rows() {
		id, err := row.Field("obs_publisher_did")
		if err != nil {
			return nil, err
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// cutoutSources gathers target positions from the flags: a single RA/Dec
// pair, a source list file, or a catalogue query for bright components.
func cutoutSources(tap *services.TAPClient, sbid string) ([]models.SkyPos, error) {
	if cutoutSourceFile != "" {
		f, err := os.Open(cutoutSourceFile)
		if err != nil {
			return nil, lib.ErrFileSystem(cutoutSourceFile, err)
		}
		defer func() { _ = f.Close() }()
		return models.ParseSourceList(f)
	}

	if cutoutFluxLimit > 0 {
		return brightComponents(tap, sbid, cutoutFluxLimit)
	}

	if cutoutRA != 0 || cutoutDec != 0 {
		return []models.SkyPos{{RA: cutoutRA, Dec: cutoutDec}}, nil
	}
	return nil, nil
}

// brightComponents queries the continuum component catalogue for sources
// above the peak flux limit.
func brightComponents(tap *services.TAPClient, sbid string, fluxLimitMJy float64) ([]models.SkyPos, error) {
	query := fmt.Sprintf(
		"SELECT ra_deg_cont, dec_deg_cont FROM casda.continuum_component cc, ivoa.obscore o "+
			"WHERE cc.catalogue_id = o.obs_publisher_did AND o.obs_id = '%s' AND cc.flux_peak > %g",
		sbid, fluxLimitMJy)

	doc, err := tap.SyncQuery(query)
	if err != nil {
		return nil, err
	}
	table, err := doc.FirstTable()
	if err != nil {
		return nil, err
	}

	var sources []models.SkyPos
	for _, row := range table.Rows() {
		ra, err := row.Field("ra_deg_cont")
		if err != nil {
			return nil, err
		}
		dec, err := row.Field("dec_deg_cont")
		if err != nil {
			return nil, err
		}
		pos, err := parseSkyPos(ra, dec)
		if err != nil {
			return nil, err
		}
		sources = append(sources, pos)
	}
	return sources, nil
}
