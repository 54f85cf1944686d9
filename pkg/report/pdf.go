package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/aegistools/statusq/pkg/result"
)

// BuildSummaryPDF renders a one-page-per-section summary of a batch run:
// the counts followed by the failure lines, input-ordered.
func BuildSummaryPDF(final *result.Final) ([]byte, error) {
	p := gofpdf.New("P", "mm", "A4", "")
	p.AddPage()
	p.SetFont("Arial", "", 12)

	p.Cell(40, 10, "Account status batch report")
	p.Ln(12)

	p.Cell(40, 8, fmt.Sprintf("Total: %d", final.Total))
	p.Ln(8)
	p.Cell(40, 8, fmt.Sprintf("Succeeded: %d", len(final.Successes)))
	p.Ln(8)
	p.Cell(40, 8, fmt.Sprintf("Failed: %d", len(final.Failures)))
	p.Ln(12)

	if len(final.Failures) > 0 {
		p.Cell(40, 10, "Failures")
		p.Ln(10)
		for _, o := range final.Failures {
			p.Cell(40, 8, fmt.Sprintf("%s - %s", o.Identifier, o.ErrDesc))
			p.Ln(8)
		}
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
