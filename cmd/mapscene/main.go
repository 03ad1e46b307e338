// Command mapscene drives the scene animator on a simulated map host. It
// runs command scripts, samples stored scenes offline and manages the scene
// store.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
