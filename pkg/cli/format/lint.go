package format

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/rzbill/stencil/pkg/types"
)

var (
	passColor     = color.New(color.FgGreen, color.Bold)
	failColor     = color.New(color.FgRed, color.Bold)
	artifactColor = color.New(color.FgCyan)
	hintColor     = color.New(color.FgYellow, color.Italic)
)

// LintPrinter renders guardrail results for one or more rows.
type LintPrinter struct {
	// OutputFormat is "text" or "json".
	OutputFormat string

	// Width is the wrap width; zero means autodetect from the terminal.
	Width int

	w io.Writer
}

// NewLintPrinter creates a printer writing to w.
func NewLintPrinter(w io.Writer, outputFormat string) *LintPrinter {
	return &LintPrinter{OutputFormat: outputFormat, w: w}
}

// Print renders the results for one application's artifact set and
// returns the number of failures.
func (p *LintPrinter) Print(app string, results []types.ValidationResult) int {
	if p.OutputFormat == "json" {
		return p.printJSON(app, results)
	}
	return p.printText(app, results)
}

func (p *LintPrinter) printJSON(app string, results []types.ValidationResult) int {
	failures := 0
	out := struct {
		App     string                   `json:"app"`
		Results []types.ValidationResult `json:"results"`
	}{App: app, Results: results}

	for _, r := range results {
		if !r.Passed {
			failures++
		}
	}
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
	return failures
}

func (p *LintPrinter) printText(app string, results []types.ValidationResult) int {
	fmt.Fprintf(p.w, "%s\n", Header("%s", app))

	failures := 0
	width := p.wrapWidth()
	for _, r := range results {
		mark := passColor.Sprint("PASS")
		if !r.Passed {
			mark = failColor.Sprint("FAIL")
			failures++
		}
		fmt.Fprintf(p.w, "  %s  %s\n", mark, artifactColor.Sprint(r.Artifact))
		if !r.Passed {
			for _, line := range wrap(r.Message, width-8) {
				fmt.Fprintf(p.w, "        %s\n", line)
			}
		}
	}

	if failures > 0 {
		fmt.Fprintf(p.w, "  %s\n", hintColor.Sprint("fix the row values or the template and re-run 'stencil lint'"))
	}
	return failures
}

// wrapWidth returns the configured width, the terminal width, or a sane
// default when stdout is not a terminal.
func (p *LintPrinter) wrapWidth() int {
	if p.Width > 0 {
		return p.Width
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 40 {
		return w
	}
	return 100
}

// wrap splits a message on spaces into lines no longer than width.
func wrap(msg string, width int) []string {
	if width < 20 {
		width = 20
	}
	words := strings.Fields(msg)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}
