package cmd

import (
	"os"

	"liveserve/internal/config"
	"liveserve/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg   *config.Config
	debug bool
)

var rootCmd = &cobra.Command{
	Use:          "liveserve",
	Short:        "A static file server that reloads the browser when files change",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger.Init(debug)

		var err error
		cfg, err = config.Load()
		return err
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serverURL(path string) string {
	return cfg.URL(path)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().Int("port", config.Default.Port, "port to serve on")
	_ = viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
}
