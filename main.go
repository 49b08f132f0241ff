// tracesched multiplexes recorded per-thread execution traces onto a
// configurable number of output cores.
//
// Commands:
//
//	run     - Run a synthetic workload and print the per-core schedule
//	record  - Run a workload while recording the schedule it produces
//	replay  - Re-run a workload, enforcing a recorded schedule
//	version - Print version information
package main

import (
	"fmt"
	"os"

	"tracesched/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
