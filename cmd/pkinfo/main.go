// Command pkinfo builds matter power spectrum tables for a fiducial
// cosmology and prints or stores queries on them.
//
// Usage:
//
//	pkinfo [--config run.yaml] [-v] <command> [flags]
//
// Examples:
//
//	pkinfo pk --z 0,1 --output nonlinear
//	pkinfo pk --k 0.01,0.1,1 --z 0.5 --type both
//	pkinfo sigma --r 8,16 --z 0
//	pkinfo knl --z 0,0.5,1
//	pkinfo export --db runs.db --z 0,1 --r 8
//	pkinfo config
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
