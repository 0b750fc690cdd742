package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foundation42/microkernel/config"
	"github.com/foundation42/microkernel/diagnostics"
	"github.com/foundation42/microkernel/identity"
	"github.com/foundation42/microkernel/runtime"
)

func newStatusCmd() *cobra.Command {
	var asHTML bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print a diagnostic snapshot of a freshly initialized node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(configPath)
			if err != nil {
				return err
			}
			name, derivedID, err := identity.Derive()
			if err != nil {
				return err
			}
			if cfg.NodeName != "" {
				name = cfg.NodeName
			}
			nodeID := derivedID
			if cfg.NodeID != 0 {
				nodeID = uint32(cfg.NodeID)
			}

			maxActors := cfg.MaxActors
			if maxActors == 0 {
				maxActors = 4096
			}
			rt := runtime.New(nodeID, name, maxActors)

			snap := diagnostics.Snapshot{
				NodeID:     rt.NodeID(),
				Identity:   rt.Identity(),
				ReadyCount: rt.ReadyCount(),
				LiveActors: rt.LiveActorCount(),
				LiveTimers: rt.LiveTimerCount(),
			}

			if asHTML {
				html, err := diagnostics.HTML(snap)
				if err != nil {
					return err
				}
				fmt.Println(html)
				return nil
			}
			fmt.Println(diagnostics.Markdown(snap))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "render the report as HTML instead of Markdown")
	return cmd
}
