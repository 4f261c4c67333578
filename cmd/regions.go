package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// regionsCmd represents the regions command
var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the selectable regions from the upstream catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newUpstreamClient()
		if err != nil {
			return err
		}

		catalog, err := client.FetchCatalog(context.Background())
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return json.NewEncoder(os.Stdout).Encode(catalog)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CODE\tNAME")
		for _, r := range catalog {
			fmt.Fprintf(w, "%d\t%s\n", r.Code, r.Name)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
	regionsCmd.Flags().Bool("json", false, "Output as JSON")
}
