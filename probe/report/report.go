// Package report renders suite results to durable formats for the
// invoking tooling: a JSON document carrying the full result contract,
// plus the CSV and HTML summaries operators actually open.
package report

import (
	"encoding/csv"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/driveprobe/driveprobe/probe/validation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Writer struct {
	logger zerolog.Logger
	dir    string
}

func NewWriter(logger zerolog.Logger, outputDir string) (*Writer, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating report directory %s: %w", outputDir, err)
	}
	return &Writer{logger: logger, dir: outputDir}, nil
}

// WriteAll renders every format for one suite.
func (w *Writer) WriteAll(suite *validation.Suite) error {
	if err := w.WriteJSON(suite); err != nil {
		return err
	}
	if err := w.WriteCSV(suite); err != nil {
		return err
	}
	return w.WriteHTML(suite)
}

func (w *Writer) WriteJSON(suite *validation.Suite) error {
	path := filepath.Join(w.dir, "report.json")
	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.logger.Info().Str("path", path).Msg("json report saved")
	return nil
}

// WriteCSV emits one row per test plus an overall row. The column set is
// the reporting contract: test_type,total_tests,passed,failed,success_rate.
func (w *Writer) WriteCSV(suite *validation.Suite) error {
	path := filepath.Join(w.dir, "report.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"test_type", "total_tests", "passed", "failed", "success_rate"}); err != nil {
		return err
	}
	for _, r := range suite.Results {
		row := []string{
			r.Name,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Passed),
			strconv.Itoa(r.Failed),
			strconv.FormatFloat(r.SuccessRate, 'f', 1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	overall := []string{
		"overall",
		strconv.Itoa(suite.Total),
		strconv.Itoa(suite.Passed),
		strconv.Itoa(suite.Failed),
		strconv.FormatFloat(suite.SuccessRate, 'f', 1, 64),
	}
	if err := cw.Write(overall); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	w.logger.Info().Str("path", path).Msg("csv report saved")
	return nil
}

func (w *Writer) WriteHTML(suite *validation.Suite) error {
	path := filepath.Join(w.dir, "report.html")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer f.Close()

	fmt.Fprint(f, "<html><head><title>Storage Validation Report</title></head><body>")
	fmt.Fprintf(f, "<h1>Storage Validation Report</h1>")
	fmt.Fprintf(f, "<p>Run %s on %s (%s, %s total, %s free)</p>",
		html.EscapeString(suite.RunID),
		html.EscapeString(suite.Device.Path),
		html.EscapeString(suite.Device.Filesystem),
		humanize.IBytes(suite.Device.TotalBytes),
		humanize.IBytes(suite.Device.FreeBytes))
	if suite.Aborted {
		fmt.Fprint(f, "<p><b>Suite aborted: device lost mid-run, results are partial.</b></p>")
	}
	for _, r := range suite.Results {
		fmt.Fprintf(f, "<h2>%s tests</h2>", html.EscapeString(r.Name))
		if r.NotRun {
			fmt.Fprint(f, "<p>Not run.</p>")
			continue
		}
		fmt.Fprintf(f, "<p>Total Tests: %d</p>", r.Total)
		fmt.Fprintf(f, "<p>Passed: %d</p>", r.Passed)
		fmt.Fprintf(f, "<p>Failed: %d</p>", r.Failed)
		if r.Skipped > 0 {
			fmt.Fprintf(f, "<p>Skipped: %d</p>", r.Skipped)
		}
		fmt.Fprintf(f, "<p>Success Rate: %.1f%%</p>", r.SuccessRate)
		for _, name := range r.MetricNames() {
			fmt.Fprintf(f, "<p><small>%s = %.3f</small></p>", html.EscapeString(name), r.Metrics[name])
		}
		for _, rec := range r.Failures {
			fmt.Fprintf(f, "<p><small>failure %s: expected %s, got %s %s</small></p>",
				html.EscapeString(rec.Scenario),
				html.EscapeString(rec.Expected),
				html.EscapeString(rec.Actual),
				html.EscapeString(rec.Detail))
		}
	}
	fmt.Fprint(f, "<h2>Overall Summary</h2>")
	fmt.Fprintf(f, "<p>Total Tests: %d</p>", suite.Total)
	fmt.Fprintf(f, "<p>Passed: %d</p>", suite.Passed)
	fmt.Fprintf(f, "<p>Failed: %d</p>", suite.Failed)
	fmt.Fprintf(f, "<p>Success Rate: %.1f%%</p>", suite.SuccessRate)
	fmt.Fprint(f, "</body></html>")

	w.logger.Info().Str("path", path).Msg("html report saved")
	return nil
}
