package export

import (
	"io"

	"github.com/rikugan-dev/rikugan/pkg/trace"
)

// HeatPlot renders mean block heat across recorded turns, oldest turn
// first, as an SVG line figure.
func HeatPlot(w io.Writer, turns []trace.Turn, config *SVGConfig) error {
	if config == nil {
		config = DefaultSVGConfig()
		config.Title = "Mean Block Heat per Turn"
	}

	b := NewPlotBuilder(config)
	// Recorders list newest first; plot in chronological order.
	for i := len(turns) - 1; i >= 0; i-- {
		b.AddPoint(len(turns)-1-i, turns[i].MeanBlockHeat)
	}
	_, err := b.WriteTo(w)
	return err
}
