package models

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Speed of light in m/s, used to convert frequency bounds to the wavelength
// pairs SODA expects in BAND criteria.
const speedOfLight = 299792458.0

// SkyPos is a sky position in decimal degrees (ICRS).
type SkyPos struct {
	RA  float64
	Dec float64
}

// CirclePos formats a single POS CIRCLE criterion. The same syntax is
// accepted by SIA2 (restricting discovery to images covering the region)
// and by SODA (selecting the region to extract).
func CirclePos(ra, dec, radiusDegrees float64) string {
	return "CIRCLE " + formatFloat(ra) + " " + formatFloat(dec) + " " + formatFloat(radiusDegrees)
}

// PosCriteria builds a POS CIRCLE criterion for each source position.
func PosCriteria(sources []SkyPos, radiusDegrees float64) []string {
	criteria := make([]string, 0, len(sources))
	for _, pos := range sources {
		criteria = append(criteria, CirclePos(pos.RA, pos.Dec, radiusDegrees))
	}
	return criteria
}

// BandFromFrequencyRange converts a frequency interval in Hz to a SODA BAND
// criterion, a pair of wavelengths in metres in ascending order.
func BandFromFrequencyRange(freqMinHz, freqMaxHz float64) string {
	return formatFloat(speedOfLight/freqMaxHz) + " " + formatFloat(speedOfLight/freqMinHz)
}

// ChannelBands slices a cube's frequency axis into blocks of channelsPerBand
// channels and returns one BAND criterion per block, walking down from the
// top of the axis. totalChannels is the cube's em_xel count. One channel is
// skipped between adjacent blocks so no channel ends up in two cubes.
func ChannelBands(freqMinHz, freqMaxHz float64, totalChannels, channelsPerBand int) []string {
	if totalChannels <= 0 || channelsPerBand <= 0 {
		return nil
	}
	if channelsPerBand > totalChannels {
		channelsPerBand = totalChannels
	}
	hzPerChannel := (freqMaxHz - freqMinHz) / float64(totalChannels)
	blocks := (totalChannels + channelsPerBand - 1) / channelsPerBand

	bands := make([]string, 0, blocks)
	pos := totalChannels
	for i := 0; i < blocks; i++ {
		fUpper := freqMinHz + hzPerChannel*float64(pos)
		pos -= channelsPerBand
		fLower := freqMinHz + hzPerChannel*float64(pos)
		// Skip the boundary channel between this block and the next.
		pos--
		bands = append(bands, BandFromFrequencyRange(fLower, fUpper))
	}
	return bands
}

// ParseSourceList reads a source list with one position per line: RA and Dec
// in decimal degrees separated by whitespace. Blank lines and lines starting
// with '#' are skipped.
func ParseSourceList(r io.Reader) ([]SkyPos, error) {
	var sources []SkyPos
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: expected RA and Dec, got %q", lineNo, line)
		}
		ra, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid RA %q: %w", lineNo, parts[0], err)
		}
		dec, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid Dec %q: %w", lineNo, parts[1], err)
		}
		sources = append(sources, SkyPos{RA: ra, Dec: dec})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source list: %w", err)
	}
	return sources, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
