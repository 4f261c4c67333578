package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aonuma/popscope/internal/utils"
	"github.com/aonuma/popscope/pkg/upstream"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `
	 _ __   ___  _ __  ___  ___ ___  _ __   ___
	| '_ \ / _ \| '_ \/ __|/ __/ _ \| '_ \ / _ \
	| |_) | (_) | |_) \__ \ (_| (_) | |_) |  __/
	| .__/ \___/| .__/|___/\___\___/| .__/ \___|
	|_|         |_|                 |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "popscope",
	Short: "Plot historical population series for administrative regions.",
	Long: LOGO + `popscope fetches per-region population history from a statistics API
and plots the regions you select together, from your command line or a
small local web UI.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.popscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".popscope")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.popscope.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("upstream.base_url", "")
	viper.SetDefault("upstream.token", "")
	viper.SetDefault("upstream.name_key", upstream.DefaultNameKey)
	viper.SetDefault("upstream.year_key", upstream.DefaultYearKey)
	viper.SetDefault("upstream.value_key", upstream.DefaultValueKey)

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// newUpstreamClient builds the API client from config plus the global proxy
// flag.
func newUpstreamClient() (*upstream.Client, error) {
	proxy, _ := rootCmd.PersistentFlags().GetString("proxy")
	client, err := upstream.New(upstream.Config{
		BaseURL:  viper.GetString("upstream.base_url"),
		Token:    viper.GetString("upstream.token"),
		Proxy:    proxy,
		NameKey:  viper.GetString("upstream.name_key"),
		YearKey:  viper.GetString("upstream.year_key"),
		ValueKey: viper.GetString("upstream.value_key"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set upstream.base_url in your config file)", err)
	}
	return client, nil
}
