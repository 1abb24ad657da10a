package cmd

import (
	"errors"
	"fmt"
	"os"

	"liveserve/internal/config"
	"liveserve/internal/util"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configFileName = ".liveserve.yaml"

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a .liveserve.yaml with the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configFileName); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", configFileName)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		data, err := config.Marshal(viper.GetViper())
		if err != nil {
			return err
		}

		if err := util.AtomicWrite(configFileName, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", configFileName, err)
		}

		fmt.Printf("wrote %s\n", configFileName)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
