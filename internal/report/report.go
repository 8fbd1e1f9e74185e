// Package report renders the single human-readable line printed after a run.
package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/Belphemur/zipfetch/internal/models"
)

// Printer writes run outcomes to an output stream
type Printer struct {
	out     io.Writer
	success *color.Color
	failure *color.Color
}

// NewPrinter creates a Printer writing to out. Colour follows fatih/color's
// terminal detection unless noColor is set.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	success := color.New(color.FgGreen)
	failure := color.New(color.FgRed, color.Bold)
	if noColor {
		success.DisableColor()
		failure.DisableColor()
	}
	return &Printer{out: out, success: success, failure: failure}
}

// Print writes exactly one line describing the outcome of a run.
func (p *Printer) Print(result *models.FetchResult, targetDir string, err error) error {
	line := Line(result, targetDir, err)
	c := p.failure
	if err == nil && result != nil && result.Success {
		c = p.success
	}
	_, werr := c.Fprintln(p.out, line)
	return werr
}

// Line formats the outcome of a run without colour.
func Line(result *models.FetchResult, targetDir string, err error) string {
	if err == nil && result != nil && result.Success {
		line := fmt.Sprintf("Download and extraction complete: %d files extracted to %s", result.ExtractedFiles, targetDir)
		if result.BytesExtracted > 0 {
			line += fmt.Sprintf(" (%s)", humanize.Bytes(uint64(result.BytesExtracted)))
		}
		return line
	}
	return "Download failed: " + reason(result, err)
}

func reason(result *models.FetchResult, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case result != nil && result.StatusCode != 0:
		return fmt.Sprintf("status code %d", result.StatusCode)
	default:
		return "unknown error"
	}
}
