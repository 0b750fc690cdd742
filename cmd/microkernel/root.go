package main

import "github.com/spf13/cobra"

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "microkernel",
		Short: "Actor-model microkernel node",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newSpawnDemoCmd())
	return root
}
