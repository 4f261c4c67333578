package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aonuma/popscope/internal/utils"
	"github.com/aonuma/popscope/pkg/selection"
	"github.com/aonuma/popscope/pkg/series"
)

// plotCmd represents the plot command
var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Fetch and print the series for a set of region codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		codesFlag, _ := cmd.Flags().GetString("regions")
		outputFlags, _ := cmd.Flags().GetString("output")
		delimiter, _ := cmd.Flags().GetString("delimiter")
		asJSON, _ := cmd.Flags().GetBool("json")

		codes, err := parseRegionCodes(codesFlag)
		if err != nil {
			return err
		}

		cache, err := buildCache()
		if err != nil {
			return err
		}
		catalog, err := cache.Catalog()
		if err != nil {
			return err
		}

		names := make(map[int]string, len(catalog))
		for _, r := range catalog {
			names[r.Code] = r.Name
		}

		ctx := context.Background()
		for _, code := range codes {
			name, ok := names[code]
			if !ok {
				utils.Log.Warnf("unknown region code %d, skipping", code)
				continue
			}
			cache.Toggle(ctx, code, true, name)
		}
		cache.Wait()

		// Codes whose fetch failed or returned nothing have rolled back by
		// now and are absent from the chart.
		selected := make(map[int]bool)
		for _, r := range cache.SelectedRegions() {
			selected[r.Code] = true
		}
		for _, code := range codes {
			if _, known := names[code]; known && !selected[code] {
				utils.Log.Warnf("no data for region %d (%s)", code, names[code])
			}
		}

		chart := cache.ChartSeries()
		if asJSON {
			return json.NewEncoder(os.Stdout).Encode(chart)
		}
		for _, cs := range chart {
			series.PrintChartSeries(cs, outputFlags, delimiter)
		}
		return nil
	},
}

// buildCache fetches the catalog once and wires it into a selection cache.
func buildCache() (*selection.Cache, error) {
	client, err := newUpstreamClient()
	if err != nil {
		return nil, err
	}
	catalog, err := client.FetchCatalog(context.Background())
	return selection.New(selection.Config{
		Fetcher:    client,
		Catalog:    catalog,
		CatalogErr: err,
		Log:        utils.Log,
	}), nil
}

func parseRegionCodes(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("no region codes given (use -r, e.g. -r 1,13,27)")
	}
	var codes []int
	for _, part := range strings.Split(s, ",") {
		code, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid region code %q", part)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func init() {
	rootCmd.AddCommand(plotCmd)
	plotCmd.Flags().StringP("regions", "r", "", "Comma-separated region codes to plot (e.g. 1,13,27)")
	plotCmd.Flags().StringP("output", "o", "nyv", "Output flags: n=name, y=year, v=value, c=color")
	plotCmd.Flags().StringP("delimiter", "d", "\t", "Field delimiter")
	plotCmd.Flags().Bool("json", false, "Output chart series as JSON")
}
