package trace

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	rerrors "github.com/rikugan-dev/rikugan/pkg/errors"
)

// CSVConfig specifies options for CSV export.
type CSVConfig struct {
	// IncludeHeader writes column headers as the first row.
	IncludeHeader bool

	// TimestampFormat for the started_at column. Defaults to RFC 3339,
	// which R and pandas both parse without help.
	TimestampFormat string

	// Precision is the number of decimal places for floating-point
	// values. Defaults to 6.
	Precision int

	// IncludePrompt includes the prompt column. Prompts can be large
	// and are often unneeded for analysis.
	IncludePrompt bool
}

// DefaultCSVConfig returns the standard export settings.
func DefaultCSVConfig() CSVConfig {
	return CSVConfig{
		IncludeHeader:   true,
		TimestampFormat: time.RFC3339,
		Precision:       6,
		IncludePrompt:   false,
	}
}

// ExportCSV writes recorded turns as CSV. Safe on a nil recorder,
// which writes nothing.
func (r *Recorder) ExportCSV(w io.Writer, cfg CSVConfig) error {
	if r == nil {
		return nil
	}
	if cfg.TimestampFormat == "" {
		cfg.TimestampFormat = time.RFC3339
	}
	if cfg.Precision <= 0 {
		cfg.Precision = 6
	}

	turns, err := r.List(0)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)

	if cfg.IncludeHeader {
		header := []string{"id", "model_id", "num_layers", "seq_len", "d_model",
			"mean_block_heat", "duration_ms", "bytes_streamed", "started_at"}
		if cfg.IncludePrompt {
			header = append(header, "prompt")
		}
		if err := cw.Write(header); err != nil {
			return rerrors.WrapIO(err, rerrors.ErrTraceExportFailed, "failed to write CSV header")
		}
	}

	for _, t := range turns {
		row := []string{
			t.ID,
			t.ModelID,
			strconv.Itoa(t.NumLayers),
			strconv.Itoa(t.SeqLen),
			strconv.Itoa(t.DModel),
			strconv.FormatFloat(t.MeanBlockHeat, 'f', cfg.Precision, 64),
			strconv.FormatFloat(float64(t.Duration)/float64(time.Millisecond), 'f', cfg.Precision, 64),
			strconv.FormatInt(t.BytesStreamed, 10),
			t.StartedAt.Format(cfg.TimestampFormat),
		}
		if cfg.IncludePrompt {
			row = append(row, t.Prompt)
		}
		if err := cw.Write(row); err != nil {
			return rerrors.WrapIO(err, rerrors.ErrTraceExportFailed, "failed to write CSV row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rerrors.WrapIO(err, rerrors.ErrTraceExportFailed, "failed to flush CSV output")
	}
	return nil
}
