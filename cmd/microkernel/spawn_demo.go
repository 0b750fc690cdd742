package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foundation42/microkernel/actor"
	"github.com/foundation42/microkernel/message"
	"github.com/foundation42/microkernel/runtime"
)

type pingPongState struct {
	n    int
	peer message.ActorID
}

func pingPongBehavior(rounds int) actor.Behavior {
	return func(rt actor.Runtime, self message.ActorID, msg message.Message, state any) bool {
		s := state.(*pingPongState)
		if msg.Type != 1 {
			return true
		}
		s.n++
		rt.Send(s.peer, 1, nil)
		return s.n < rounds
	}
}

// newSpawnDemoCmd runs a single-node ping-pong scenario to completion
// in-process and reports the two counters, as a smoke test a human can run
// without standing up real transports.
func newSpawnDemoCmd() *cobra.Command {
	var rounds int
	cmd := &cobra.Command{
		Use:   "spawn-demo",
		Short: "Run the single-node ping-pong demo to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := runtime.New(1, "demo", 16)

			aState := &pingPongState{}
			bState := &pingPongState{}
			behavior := pingPongBehavior(rounds)

			aID, err := rt.Spawn(behavior, aState, nil, 8)
			if err != nil {
				return err
			}
			bID, err := rt.Spawn(behavior, bState, nil, 8)
			if err != nil {
				return err
			}
			aState.peer = bID
			bState.peer = aID

			rt.Send(aID, 1, nil)

			for rt.LiveActorCount() > 0 {
				if err := rt.Step(); err != nil {
					return err
				}
			}

			fmt.Printf("A rounds=%d B rounds=%d\n", aState.n, bState.n)
			return nil
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", 1000, "round trips each side sends before stopping")
	return cmd
}
