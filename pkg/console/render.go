package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// blocks are partial-width bar characters, thinnest first.
var blocks = []rune{'▏', '▎', '▍', '▌', '▋', '▊', '▉', '█'}

// terminalWidth returns the current terminal width, or 80 when the
// output is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// heatBar renders one value in [0, max] as a bar of the given width.
func heatBar(value, max float64, width int) string {
	if max <= 0 || value < 0 {
		return ""
	}
	cells := value / max * float64(width)
	full := int(cells)
	if full > width {
		full = width
	}

	var b strings.Builder
	for i := 0; i < full; i++ {
		b.WriteRune('█')
	}
	if full < width {
		frac := cells - float64(full)
		if idx := int(frac * float64(len(blocks))); idx > 0 {
			b.WriteRune(blocks[idx-1])
		}
	}
	return b.String()
}

// RenderHeat writes a per-layer block heat chart.
func RenderHeat(w io.Writer, heat []float64) {
	if len(heat) == 0 {
		return
	}

	max := heat[0]
	for _, h := range heat {
		if h > max {
			max = h
		}
	}

	// Leave room for the "L12 0.1234 " gutter.
	barWidth := terminalWidth() - 14
	if barWidth < 10 {
		barWidth = 10
	}
	if barWidth > 60 {
		barWidth = 60
	}

	fmt.Fprintln(w, "Block heat (mean residual delta per layer):")
	for l, h := range heat {
		fmt.Fprintf(w, "  L%-3d %7.4f \033[36m%s\033[0m\n", l, h, heatBar(h, max, barWidth))
	}
}

// RenderTurn writes the full turn: generated text, heat chart, and the
// slice buffer shape when the model streamed fine activations.
func RenderTurn(w io.Writer, turn *Turn) {
	fmt.Fprintf(w, "\033[36m[%s]\033[0m %s\n", turn.Result.ModelID, turn.Result.Text)

	if turn.Frame != nil {
		fmt.Fprintln(w)
		RenderHeat(w, turn.Frame.BlockHeat)
	}

	if turn.Meta != nil && len(turn.SliceBytes) > 0 {
		fmt.Fprintf(w, "\033[90m  └─ slices: %d layers x %d types x [%d x %d], %d bytes\033[0m\n",
			turn.Meta.NumLayers, len(turn.Meta.SliceTypes),
			turn.Meta.SeqLen, turn.Meta.DModel, len(turn.SliceBytes))
	}
	if turn.Projections != nil && len(turn.TokenProj) > 0 {
		fmt.Fprintf(w, "\033[90m  └─ projections: %d token bytes, %d dim bytes\033[0m\n",
			len(turn.TokenProj), len(turn.DimProj))
	}
	fmt.Fprintln(w)
}
