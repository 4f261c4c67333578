package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aonuma/popscope/internal/server"
	"github.com/aonuma/popscope/internal/utils"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web UI for selecting regions and viewing the chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		// A failed catalog fetch still starts the server: the UI shows the
		// error and an empty region list.
		cache, err := buildCache()
		if err != nil {
			return err
		}
		if _, catalogErr := cache.Catalog(); catalogErr != nil {
			utils.Log.Errorf("catalog fetch failed: %v", catalogErr)
		}

		return server.New(cache, username, password).Start(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "127.0.0.1:7171", "HTTP listen address")
	serveCmd.Flags().String("username", "", "Basic auth username (empty disables auth)")
	serveCmd.Flags().String("password", "", "Basic auth password")
}
