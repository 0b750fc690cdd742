package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btclog/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/foundation42/microkernel/config"
	"github.com/foundation42/microkernel/identity"
	"github.com/foundation42/microkernel/registry/store"
	"github.com/foundation42/microkernel/runtime"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start a node and run its event loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				fx.Provide(
					func() (*config.Config, *viper.Viper, error) {
						return config.Load(configPath)
					},
					newRuntime,
					openStore,
				),
				fx.Invoke(registerRunLoop, registerConfigWatch, registerStore),
				fx.NopLogger,
			)
			app.Run()
			return app.Err()
		},
	}
}

func newRuntime(cfg *config.Config) (*runtime.Runtime, error) {
	name, derivedID, err := identity.Derive()
	if err != nil {
		return nil, err
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
	backend := btclog.NewBackend(os.Stdout)
	rt.SetLogger(backend.Logger("kernel"))
	return rt, nil
}

// openStore opens the registry's optional persistence layer when
// cfg.StorePath is set. A nil *store.Store is a valid result: persistence is
// opt-in.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.StorePath == "" {
		return nil, nil
	}
	return store.Open(cfg.StorePath)
}

// registerStore restores any persisted bindings into the registry at
// startup and saves a snapshot back to the store on shutdown. It is a no-op
// when no store path was configured.
func registerStore(rt *runtime.Runtime, s *store.Store, lc fx.Lifecycle) {
	if s == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			bindings, err := s.Load()
			if err != nil {
				return err
			}
			rt.Registry().Restore(bindings)
			return nil
		},
		OnStop: func(context.Context) error {
			if err := s.Save(rt.Registry().Snapshot()); err != nil {
				return err
			}
			return s.Close()
		},
	})
}

// registerConfigWatch wires fsnotify-driven config reloads (config.Watch)
// into the runtime's event loop: a changed file is re-read, JSON-encoded,
// and queued as a ConfigChanged message for whatever actor is mounted at
// runtime.ConfigListenerPath.
func registerConfigWatch(rt *runtime.Runtime, v *viper.Viper) {
	config.Watch(v, func(cfg *config.Config) {
		payload, err := json.Marshal(cfg)
		if err != nil {
			return
		}
		rt.QueueConfigChanged(payload)
	})
}

// registerRunLoop hooks the runtime's event loop into fx's lifecycle: it
// starts on a background goroutine (Run blocks) and RuntimeStop is called
// when fx tears the app down, letting the next Step observe the flag and
// exit.
func registerRunLoop(rt *runtime.Runtime, lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			fmt.Printf("node %d (%s) starting\n", rt.NodeID(), "microkernel")
			go func() {
				_ = rt.Run()
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			rt.RuntimeStop()
			return nil
		},
	})
}
