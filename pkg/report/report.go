// Package report serializes finalized result sets to their destinations:
// JSON documents for the success and failure collections, an optional PDF
// summary, and the end-of-run console summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aegistools/statusq/pkg/loader"
	"github.com/aegistools/statusq/pkg/result"
)

// Options selects the destinations for one report.
// Empty paths fall back to the reporter's stdout writer, mirroring the
// command surface: missing -o/-e prints collections to the console.
type Options struct {
	OutputPath string
	ErrorPath  string
	PDFPath    string
}

// Reporter writes finalized result sets.
type Reporter struct {
	stdout io.Writer
	logger zerolog.Logger
}

// New creates a reporter. stdout receives collections whose file path is
// not configured.
func New(stdout io.Writer) *Reporter {
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Reporter{
		stdout: stdout,
		logger: log.With().Str("component", "reporter").Logger(),
	}
}

// Write serializes the success and failure collections per opts.
// Both documents are rendered even when empty so re-runs with identical
// input produce byte-identical outputs.
func (r *Reporter) Write(final *result.Final, opts Options) error {
	successDoc, err := MarshalSuccesses(final.Successes)
	if err != nil {
		return fmt.Errorf("marshal successes: %w", err)
	}
	failureDoc, err := MarshalFailures(final.Failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	if opts.OutputPath != "" {
		if err := writeFileAtomic(opts.OutputPath, successDoc); err != nil {
			return fmt.Errorf("write success document: %w", err)
		}
		r.logger.Info().Str("path", opts.OutputPath).Int("records", len(final.Successes)).Msg("Success document written")
	} else {
		fmt.Fprintf(r.stdout, "Collection of output datas (%d):\n%s\n", len(final.Successes), successDoc)
	}

	if opts.ErrorPath != "" {
		if err := writeFileAtomic(opts.ErrorPath, failureDoc); err != nil {
			return fmt.Errorf("write error document: %w", err)
		}
		r.logger.Info().Str("path", opts.ErrorPath).Int("records", len(final.Failures)).Msg("Error document written")
	} else if len(final.Failures) > 0 {
		fmt.Fprintf(r.stdout, "Collection of err datas (%d):\n%s\n", len(final.Failures), failureDoc)
	}

	if opts.PDFPath != "" {
		data, err := BuildSummaryPDF(final)
		if err != nil {
			return fmt.Errorf("build pdf summary: %w", err)
		}
		if err := writeFileAtomic(opts.PDFPath, data); err != nil {
			return fmt.Errorf("write pdf summary: %w", err)
		}
		r.logger.Info().Str("path", opts.PDFPath).Msg("PDF summary written")
	}

	return nil
}

// Summary prints the colored end-of-run summary and logs the counts.
func (r *Reporter) Summary(final *result.Final, elapsed time.Duration) {
	ok := color.New(color.FgGreen, color.Bold).SprintFunc()
	bad := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(r.stdout, "%s %d succeeded, %s %d failed %s\n",
		ok("✔"), len(final.Successes),
		bad("✘"), len(final.Failures),
		dim(fmt.Sprintf("(%d items in %s)", final.Total, elapsed.Round(time.Millisecond))))

	r.logger.Info().
		Int("successes", len(final.Successes)).
		Int("failures", len(final.Failures)).
		Int("total", final.Total).
		Dur("elapsed", elapsed).
		Msg("Batch finished")
}

// MarshalSuccesses renders the success collection as an indented JSON array.
// Each record carries easy_id plus the status payload fields.
func MarshalSuccesses(successes []result.Outcome) ([]byte, error) {
	records := make([]map[string]any, 0, len(successes))
	for _, o := range successes {
		rec := make(map[string]any, len(o.Payload)+1)
		for k, v := range o.Payload {
			rec[k] = v
		}
		rec["easy_id"] = identifierValue(o.Identifier)
		records = append(records, rec)
	}
	return json.MarshalIndent(records, "", "    ")
}

// MarshalFailures renders the failure collection as an indented JSON array.
// Each record carries easy_id and the failure description.
func MarshalFailures(failures []result.Outcome) ([]byte, error) {
	records := make([]map[string]any, 0, len(failures))
	for _, o := range failures {
		records = append(records, map[string]any{
			"easy_id": identifierValue(o.Identifier),
			"error":   o.ErrDesc,
		})
	}
	return json.MarshalIndent(records, "", "    ")
}

// identifierValue renders valid identifiers as JSON numbers of arbitrary
// precision; tokens that never parsed stay strings.
func identifierValue(id string) any {
	if _, err := loader.ParseIdentifier(id); err == nil {
		return json.RawMessage(id)
	}
	return id
}

// writeFileAtomic writes data via a temp file and rename so readers never
// observe a partial document.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
