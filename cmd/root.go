/*
Copyright © 2025 Vela Contributors

Vela is a CLI tool for retrieving data products from a VO radio astronomy archive.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vela",
	Short: "Vela - VO archive data retrieval CLI",
	Long: `Vela retrieves data products from a Virtual Observatory radio astronomy
archive using the standard VO protocols (TAP, SIA2, DataLink, SODA/UWS).

The CLI resolves data product identifiers to authenticated access tokens,
drives server-side extraction jobs to completion and streams the results
to local files:
  - full product retrieval (fetch)
  - spatial/spectral cutouts from image cubes (cutout)
  - spectrum extraction at source positions (spectrum)
  - ad-hoc ADQL catalogue queries (query)

Example:
  vela fetch cube-12345 cube-12346
  vela cutout 33837 --ra 333.61 --dec -45.19 --radius 0.1
  vela query "SELECT * FROM ivoa.obscore WHERE obs_id = '33837'"

For more information, visit: https://github.com/ralverson/vela`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./vela.yaml, ~/.config/vela/vela.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	// Add version template
	rootCmd.SetVersionTemplate("Vela version {{.Version}}\n")
}
