// Command microkernel is the reference node binary: it wires identity
// derivation, configuration, the runtime, and transports together behind a
// small cobra CLI.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
