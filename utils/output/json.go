package output

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// JSONSummaryWriter writes one JSON document per summary, newline
// terminated, so repeated scans form a stream a json.Decoder can read back.
type JSONSummaryWriter struct {
	encoder *json.Encoder
}

func NewJSONSummaryWriter(writer io.Writer, prefix, indent string) *JSONSummaryWriter {
	enc := json.NewEncoder(writer)
	enc.SetIndent(prefix, indent)
	// Snippets are already escaped; leave "&lt;" intact.
	enc.SetEscapeHTML(false)
	return &JSONSummaryWriter{
		encoder: enc,
	}
}

func (w *JSONSummaryWriter) WriteSummary(sum ScanSummary) error {
	if err := w.encoder.Encode(&sum); err != nil {
		return errors.Wrap(err, "error encoding json summary")
	}
	return nil
}
