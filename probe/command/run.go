package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/facebookgo/clock"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"

	"github.com/driveprobe/driveprobe/probe/device"
	"github.com/driveprobe/driveprobe/probe/report"
	"github.com/driveprobe/driveprobe/probe/stats"
	"github.com/driveprobe/driveprobe/probe/util"
	"github.com/driveprobe/driveprobe/probe/validation"
)

type RunOptions struct {
	device     *string
	test       *string
	iterations *int
	output     *string
	verbose    *bool
	dryRun     *bool
}

var runOpts RunOptions

func init() {
	cmdRun.Run = runRun // break init cycle
	runOpts.device = cmdRun.Flag.String("device", "", "comma separated mount points of the devices under test")
	runOpts.test = cmdRun.Flag.String("test", "all", "tests to run: performance|integrity|endurance|fault|all, comma separated")
	runOpts.iterations = cmdRun.Flag.Int("iterations", 0, "override configured iterations when > 0")
	runOpts.output = cmdRun.Flag.String("output", "", "override configured report output directory")
	runOpts.verbose = cmdRun.Flag.Bool("v", false, "verbose debug logging")
	runOpts.dryRun = cmdRun.Flag.Bool("dryRun", false, "print the resolved plan without performing any I/O")
}

var cmdRun = &Command{
	UsageLine: "run -device=/media/usb0 -test=all",
	Short:     "run validation tests against mounted storage devices",
	Long: `Run exercises each given device with real I/O and produces
  pass/fail verdicts plus throughput and integrity metrics.

  Tests against a single device run strictly sequentially. Distinct
  devices run in parallel on a bounded worker pool ([execution] workers
  in probe.toml), one device per worker.

  Configuration is read from probe.toml (see 'probe scaffold'). Reports
  are written to the configured output directory in JSON, CSV and HTML.

  Exit code is 0 when every requested test passed, 1 when any test
  failed or the run could not start, 130 when interrupted.
  `,
}

func runRun(cmd *Command, args []string) int {
	logger := util.NewLogger(os.Stderr, *runOpts.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := util.LoadConfiguration(logger, "probe", false); err != nil {
		logger.Error().Err(err).Msg("loading configuration")
		return 1
	}
	v := util.GetViper()
	v.SetDefault("reporting.output_dir", "reports")

	cfg := validation.FromConfiguration(v)
	if *runOpts.iterations > 0 {
		cfg.Iterations = *runOpts.iterations
	}
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("configuration rejected")
		return 1
	}

	kinds, err := validation.ParseKinds(*runOpts.test)
	if err != nil {
		logger.Error().Err(err).Msg("invalid test selection")
		return 1
	}

	if *runOpts.device == "" {
		logger.Error().Msg("no device specified; use -device or 'probe list'")
		return 1
	}
	targets, code := resolveTargets(logger, *runOpts.device, cfg)
	if code != 0 {
		return code
	}

	outputDir := v.GetString("reporting.output_dir")
	if *runOpts.output != "" {
		outputDir = *runOpts.output
	}

	if *runOpts.dryRun {
		printPlan(targets, cfg, kinds, outputDir)
		return 0
	}

	suites := validation.RunSuites(ctx, logger, clock.New(), targets, cfg, kinds)

	exitCode := 0
	for i, suite := range suites {
		if suite == nil {
			logger.Error().Str("device", targets[i].Path).Msg("suite produced no result")
			exitCode = 1
			continue
		}
		dir := outputDir
		if len(targets) > 1 {
			dir = filepath.Join(outputDir, pathSlug(targets[i].Path))
		}
		if err := writeReports(logger, dir, suite); err != nil {
			logger.Error().Err(err).Msg("writing reports")
			exitCode = 1
		}
		printSummary(suite, kinds)
		if suite.Failed > 0 || suite.Aborted {
			exitCode = 1
		}
	}

	if *runOpts.verbose {
		if err := dumpMetrics(os.Stderr); err != nil {
			logger.Debug().Err(err).Msg("dumping run metrics")
		}
	}

	if ctx.Err() != nil {
		logger.Warn().Msg("testing interrupted")
		return 130
	}
	return exitCode
}

// dumpMetrics renders the counters accumulated across the whole run in the
// prometheus text format, for post-mortems on verbose runs.
func dumpMetrics(w io.Writer) error {
	families, err := stats.Gather.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func resolveTargets(logger zerolog.Logger, deviceList string, cfg validation.Config) ([]*device.Target, int) {
	var targets []*device.Target
	for _, path := range strings.Split(deviceList, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		target, err := device.Snapshot(path)
		if err != nil {
			logger.Error().Err(err).Str("device", path).Msg("invalid or inaccessible device")
			return nil, 1
		}
		if err := target.Validate(); err != nil {
			logger.Error().Err(err).Str("device", path).Msg("device is not writable")
			return nil, 1
		}
		if target.FreeBytes < uint64(cfg.TestDataSize) {
			logger.Error().
				Str("device", path).
				Str("free", humanize.IBytes(target.FreeBytes)).
				Str("needed", humanize.IBytes(uint64(cfg.TestDataSize))).
				Msg("not enough free space for the configured test data size")
			return nil, 1
		}
		logger.Info().
			Str("device", path).
			Str("filesystem", target.Filesystem).
			Str("total", humanize.IBytes(target.TotalBytes)).
			Str("free", humanize.IBytes(target.FreeBytes)).
			Msg("device validated")
		targets = append(targets, target)
	}
	if len(targets) == 0 {
		logger.Error().Msg("no usable device targets")
		return nil, 1
	}
	return targets, 0
}

func writeReports(logger zerolog.Logger, dir string, suite *validation.Suite) error {
	writer, err := report.NewWriter(logger, dir)
	if err != nil {
		return err
	}
	return writer.WriteAll(suite)
}

func printPlan(targets []*device.Target, cfg validation.Config, kinds []validation.Kind, outputDir string) {
	fmt.Println("dry run, no I/O will be performed")
	for _, t := range targets {
		fmt.Printf("device:    %s (%s, %s free of %s)\n",
			t.Path, t.Filesystem, humanize.IBytes(t.FreeBytes), humanize.IBytes(t.TotalBytes))
	}
	fmt.Printf("tests:     %s\n", kindsLine(kinds))
	fmt.Printf("iterations: %d, data size %s, endurance cycles %d, timeout %s\n",
		cfg.Iterations, humanize.IBytes(uint64(cfg.TestDataSize)), cfg.EnduranceCycles, cfg.PerTestTimeout)
	fmt.Printf("reports:   %s\n", outputDir)
}

func printSummary(suite *validation.Suite, kinds []validation.Kind) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("TEST SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Device:        %s\n", suite.Device.Path)
	fmt.Printf("Tests:         %s\n", kindsLine(kinds))
	fmt.Printf("Total Tests:   %d\n", suite.Total)
	fmt.Printf("Passed:        %d\n", suite.Passed)
	fmt.Printf("Failed:        %d\n", suite.Failed)
	fmt.Printf("Success Rate:  %.1f%%\n", suite.SuccessRate)
	if suite.Aborted {
		fmt.Println("Suite aborted: device lost mid-run, results are partial.")
	}
}

func kindsLine(kinds []validation.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func pathSlug(path string) string {
	slug := strings.Trim(path, `/\`)
	slug = strings.NewReplacer("/", "_", `\`, "_", ":", "", " ", "_").Replace(slug)
	if slug == "" {
		slug = "root"
	}
	return slug
}
