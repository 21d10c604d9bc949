package command

import (
	"fmt"
	"os"
	"path/filepath"
)

var scaffoldOutput *string

func init() {
	cmdScaffold.Run = runScaffold // break init cycle
	scaffoldOutput = cmdScaffold.Flag.String("output", "", "if not empty, save the configuration file to this directory")
}

var cmdScaffold = &Command{
	UsageLine: "scaffold -output=.",
	Short:     "generate a default probe.toml configuration file",
	Long: `Generate probe.toml with all recognized options for you to customize.

  The file is looked up from these locations, in priority order:
     ./probe.toml
     $HOME/.driveprobe/probe.toml
     /etc/driveprobe/probe.toml
  `,
}

func runScaffold(cmd *Command, args []string) int {
	if *scaffoldOutput != "" {
		path := filepath.Join(*scaffoldOutput, "probe.toml")
		if err := os.WriteFile(path, []byte(PROBE_TOML_EXAMPLE), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "writing %s: %v\n", path, err)
			return 1
		}
		return 0
	}
	fmt.Print(PROBE_TOML_EXAMPLE)
	return 0
}

const PROBE_TOML_EXAMPLE = `
# A sample TOML config file for driveprobe
# Used with "probe run"
# Put this file in one of these locations, with descending priority
#    ./probe.toml
#    $HOME/.driveprobe/probe.toml
#    /etc/driveprobe/probe.toml

[test_parameters]
# independent trials per test component
iterations = 3
# block sizes exercised by the performance benchmark, in bytes
block_sizes = [4096, 65536, 1048576]
# payload size for integrity and endurance runs, in bytes
test_data_size_bytes = 16777216
# write+verify cycles for the endurance test
endurance_cycles = 20
# abort the endurance run after three consecutive cycles this far
# below the baseline throughput, in percent
endurance_degradation_threshold_pct = 30.0
# fault scenarios to inject: truncated_write, short_read, simulated_disconnect
fault_scenarios = ["truncated_write", "short_read", "simulated_disconnect"]
# wall-clock budget per test component, in seconds
per_test_timeout_seconds = 300.0
# benchmark with seeded random offsets instead of sequential ones
random_offsets = false
# seed for all pseudo-random data and offsets; same seed, same procedure
seed = 1

[execution]
# devices validated in parallel; each worker owns one device exclusively
workers = 1

[reporting]
# where report.json / report.csv / report.html are written
output_dir = "reports"
`
