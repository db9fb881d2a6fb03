package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// TextSummaryWriter renders a summary for a terminal: a safe or warning
// banner followed by one block per file that has findings or an error.
type TextSummaryWriter struct {
	writer io.Writer

	safe    *color.Color
	warning *color.Color
	file    *color.Color
	keyword *color.Color
	failed  *color.Color
}

func NewTextSummaryWriter(writer io.Writer, noColor bool) *TextSummaryWriter {
	w := &TextSummaryWriter{
		writer:  writer,
		safe:    color.New(color.FgGreen, color.Bold),
		warning: color.New(color.FgYellow, color.Bold),
		file:    color.New(color.FgCyan, color.Bold),
		keyword: color.New(color.FgMagenta),
		failed:  color.New(color.FgRed),
	}
	if noColor {
		for _, c := range []*color.Color{w.safe, w.warning, w.file, w.keyword, w.failed} {
			c.DisableColor()
		}
	}
	return w
}

func (w *TextSummaryWriter) WriteSummary(sum ScanSummary) error {
	var err error
	printf := func(c *color.Color, format string, args ...interface{}) {
		if err != nil {
			return
		}
		if c == nil {
			_, err = fmt.Fprintf(w.writer, format, args...)
			return
		}
		_, err = c.Fprintf(w.writer, format, args...)
	}

	if sum.Verdict == VerdictSafe {
		printf(w.safe, "SAFE: no ActiveX indicators found in %d %s\n",
			sum.Stats.FilesScanned, plural(sum.Stats.FilesScanned, "file", "files"))
	} else {
		printf(w.warning, "WARNING: %d ActiveX %s found in %d of %d %s\n",
			sum.Stats.TotalFindings, plural(sum.Stats.TotalFindings, "indicator", "indicators"),
			sum.Stats.FilesHit, sum.Stats.FilesScanned, plural(sum.Stats.FilesScanned, "file", "files"))
	}

	for _, r := range sum.Results {
		if r.Error == "" && len(r.Findings) == 0 {
			continue
		}
		printf(nil, "\n")
		printf(w.file, "%s\n", r.FileName)
		if r.Error != "" {
			printf(w.failed, "  error: %s\n", r.Error)
			continue
		}
		for _, f := range r.Findings {
			printf(nil, "  ")
			printf(w.keyword, "%s", f.Keyword)
			printf(nil, " at position %d\n    %s\n", f.Position, f.Snippet)
		}
	}
	return err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
