package probe

import (
	"math"

	"github.com/rikugan-dev/rikugan/pkg/adapter"
)

// HeatProbe is the coarse activation probe: one layer-boundary hook
// per layer, reduced to a single "block heat" scalar per layer.
type HeatProbe struct {
	layers  int
	deltas  []adapter.Tensor
	handles []adapter.HookHandle
}

// NewHeatProbe creates a coarse probe for a capability with the given
// declared layer count.
func NewHeatProbe(layers int) *HeatProbe {
	if layers < 0 {
		layers = 0
	}
	return &HeatProbe{
		layers: layers,
		deltas: make([]adapter.Tensor, layers),
	}
}

// Install registers one layer-boundary callback per layer. On a
// partial failure the already-registered hooks stay attached; callers
// must pair Install with a deferred Remove on every path.
func (p *HeatProbe) Install(a adapter.Adapter) error {
	for l := 0; l < p.layers; l++ {
		layer := l
		h, err := a.RegisterHook(adapter.PointLayer, layer, func(_ int, input, output adapter.Tensor) {
			p.deltas[layer] = residualDelta(input, output)
		})
		if err != nil {
			return err
		}
		p.handles = append(p.handles, h)
	}
	return nil
}

// Remove unregisters all callbacks. Idempotent, and safe after a
// partial install.
func (p *HeatProbe) Remove() {
	for _, h := range p.handles {
		h.Remove()
	}
	p.handles = nil
}

// BlockHeat returns one scalar per declared layer: the row-wise L2
// norm of the layer's residual delta averaged over positions, or 0.0
// for any layer that never fired.
func (p *HeatProbe) BlockHeat() []float64 {
	heat := make([]float64, p.layers)
	for l := 0; l < p.layers; l++ {
		heat[l] = meanRowNorm(p.deltas[l])
	}
	return heat
}

// residualDelta detaches output - input as a fresh tensor.
func residualDelta(input, output adapter.Tensor) adapter.Tensor {
	if input.Empty() || output.Empty() || len(input.Data) != len(output.Data) {
		return adapter.Tensor{}
	}
	delta := make([]float32, len(output.Data))
	for i := range delta {
		delta[i] = output.Data[i] - input.Data[i]
	}
	return adapter.Tensor{Data: delta, SeqLen: output.SeqLen, DModel: output.DModel}
}

// meanRowNorm computes mean over rows of the per-row L2 norm.
func meanRowNorm(t adapter.Tensor) float64 {
	if t.Empty() {
		return 0
	}
	var total float64
	for i := 0; i < t.SeqLen; i++ {
		row := t.Data[i*t.DModel : (i+1)*t.DModel]
		var sum float64
		for _, v := range row {
			sum += float64(v) * float64(v)
		}
		total += math.Sqrt(sum)
	}
	return total / float64(t.SeqLen)
}
