package output

import (
	"io"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// YAMLSummaryWriter separates successive summaries with "---" so a watch
// session produces a valid multi-document stream.
type YAMLSummaryWriter struct {
	writer  io.Writer
	written int
}

func NewYAMLSummaryWriter(writer io.Writer) *YAMLSummaryWriter {
	return &YAMLSummaryWriter{
		writer: writer,
	}
}

func (w *YAMLSummaryWriter) WriteSummary(sum ScanSummary) error {
	data, err := yaml.Marshal(&sum)
	if err != nil {
		return errors.Wrap(err, "error encoding yaml summary")
	}
	if w.written > 0 {
		data = append([]byte("---\n"), data...)
	}
	if _, err := w.writer.Write(data); err != nil {
		return errors.Wrap(err, "error writing yaml summary")
	}
	w.written++
	return nil
}
