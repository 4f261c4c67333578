package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aonuma/popscope/internal/utils"
	"github.com/aonuma/popscope/pkg/storage"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Fetch region series and snapshot them into a sqlite file",
	RunE: func(cmd *cobra.Command, args []string) error {
		codesFlag, _ := cmd.Flags().GetString("regions")
		dbPath, _ := cmd.Flags().GetString("db")

		if list, _ := cmd.Flags().GetBool("list"); list {
			return listSnapshots(dbPath)
		}

		codes, err := parseRegionCodes(codesFlag)
		if err != nil {
			return err
		}

		client, err := newUpstreamClient()
		if err != nil {
			return err
		}

		ctx := context.Background()
		catalog, err := client.FetchCatalog(ctx)
		if err != nil {
			return err
		}
		names := make(map[int]string, len(catalog))
		for _, r := range catalog {
			names[r.Code] = r.Name
		}

		absPath, err := utils.AbsDBPath(dbPath)
		if err != nil {
			return err
		}
		lock, err := utils.NewExportLock(absPath)
		if err != nil {
			return err
		}
		if err := lock.Acquire(); err != nil {
			return err
		}
		defer lock.Release()

		db, err := storage.Open(absPath)
		if err != nil {
			return err
		}
		defer db.Close()

		exported := 0
		for _, code := range codes {
			name, ok := names[code]
			if !ok {
				utils.Log.Warnf("unknown region code %d, skipping", code)
				continue
			}
			rs, err := client.FetchRegionSeries(ctx, code, name)
			if err != nil {
				utils.Log.Warnf("fetch for region %d (%s) failed: %v", code, name, err)
				continue
			}
			if len(rs.Points) == 0 {
				utils.Log.Warnf("no data for region %d (%s), skipping", code, name)
				continue
			}
			if err := db.SnapshotSeries(ctx, rs); err != nil {
				return err
			}
			exported++
		}

		fmt.Printf("Exported %d region series to %s\n", exported, absPath)
		return nil
	},
}

// listSnapshots prints what an existing snapshot file holds, one line per
// region with its point count and year range.
func listSnapshots(dbPath string) error {
	absPath, err := utils.AbsDBPath(dbPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("snapshot file not found: %s", absPath)
		}
		return err
	}

	db, err := storage.Open(absPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	regions, err := db.ListRegions(ctx)
	if err != nil {
		return err
	}
	if len(regions) == 0 {
		fmt.Println("No region series in the snapshot.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tPOINTS\tYEARS")
	for _, r := range regions {
		rs, err := db.GetSeries(ctx, r.Code)
		if err != nil {
			return err
		}
		years := "-"
		if len(rs.Points) > 0 {
			years = fmt.Sprintf("%d-%d", rs.Points[0].Year, rs.Points[len(rs.Points)-1].Year)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", r.Code, r.Name, len(rs.Points), years)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("regions", "r", "", "Comma-separated region codes to export")
	exportCmd.Flags().String("db", "popscope.sqlite", "Path to the sqlite snapshot file")
	exportCmd.Flags().Bool("list", false, "List the region series already in the snapshot file")
}
