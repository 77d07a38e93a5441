package main

import (
	"github.com/koustreak/quizmeet/internal/config"
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "quizmeet",
		Short:        "Quiz tournament data service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	root.AddCommand(
		ServeCmd(load),
		MigrateCmd(load),
	)
	return root
}
