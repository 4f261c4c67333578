package series

import (
	"fmt"
	"log"
	"strings"
)

// Region is one selectable administrative region from the upstream catalog.
// Codes are 1-based, stable identifiers owned by the catalog.
type Region struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// Point is a single (year, value) observation.
type Point struct {
	Year  int `json:"year"`
	Value int `json:"value"`
}

// RegionSeries is the resolved, year-sorted history for one region.
// Points are strictly increasing by year with no duplicate years.
// Immutable after creation.
type RegionSeries struct {
	Code   int     `json:"code"`
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// ChartSeries is one plottable line. It is always derived fresh from the
// current selection and cache, never stored.
type ChartSeries struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
	Color  string  `json:"color"`
}

// palette is the fixed set of line colors. Once more regions are selected
// than the palette holds, colors repeat; that's fine.
var palette = []string{
	"#e6194b",
	"#3cb44b",
	"#4363d8",
	"#f58231",
	"#911eb4",
	"#46f0f0",
	"#f032e6",
	"#bcf60c",
	"#008080",
	"#9a6324",
	"#800000",
	"#808000",
}

// ColorFor returns the line color for a region code. Pure function of the
// code alone: (code-1) mod len(palette), since codes are 1-based.
func ColorFor(code int) string {
	idx := (code - 1) % len(palette)
	if idx < 0 {
		idx += len(palette)
	}
	return palette[idx]
}

// PrintChartSeries prints every point of a chart series, one line per point,
// formatted according to outputFlags.
func PrintChartSeries(cs ChartSeries, outputFlags, delimiter string) {
	for _, p := range cs.Points {
		line := createLine(cs, p, outputFlags, delimiter)
		if len(line) > 0 {
			fmt.Println(line)
		}
	}
}

func createLine(cs ChartSeries, p Point, outputFlags, delimiter string) string {
	var line string
	for _, f := range outputFlags {
		switch f {
		case 'n':
			line += cs.Name + delimiter
		case 'y':
			line += fmt.Sprintf("%d%s", p.Year, delimiter)
		case 'v':
			line += fmt.Sprintf("%d%s", p.Value, delimiter)
		case 'c':
			line += cs.Color + delimiter
		default:
			log.Fatal("Invalid print flag")
		}
	}
	return strings.TrimSuffix(line, delimiter)
}
