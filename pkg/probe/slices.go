package probe

import (
	"math"

	"github.com/rikugan-dev/rikugan/pkg/adapter"
)

// SliceNames is the fixed slice order of the binary layout.
var SliceNames = []string{"resid_pre", "attn_out", "delta_attn", "mlp_out", "delta_mlp", "resid_post"}

// NumSlices is the number of derived slices per layer.
const NumSlices = 6

// SliceMetadata describes the shape of one serialized slice buffer.
type SliceMetadata struct {
	SliceTypes []string `json:"slice_types"`
	NumLayers  int      `json:"num_layers"`
	SeqLen     int      `json:"seq_len"`
	DModel     int      `json:"d_model"`
}

// SliceProbe is the fine activation probe. It captures resid_pre,
// resid_post, attn_out, and mlp_out per layer during one forward pass
// and derives six equally shaped slices per layer from them.
type SliceProbe struct {
	layers    int
	residPre  []adapter.Tensor
	residPost []adapter.Tensor
	attnOut   []adapter.Tensor
	mlpOut    []adapter.Tensor
	handles   []adapter.HookHandle
}

// NewSliceProbe creates a fine probe for a capability with the given
// declared layer count.
func NewSliceProbe(layers int) *SliceProbe {
	if layers < 0 {
		layers = 0
	}
	return &SliceProbe{
		layers:    layers,
		residPre:  make([]adapter.Tensor, layers),
		residPost: make([]adapter.Tensor, layers),
		attnOut:   make([]adapter.Tensor, layers),
		mlpOut:    make([]adapter.Tensor, layers),
	}
}

// Install registers three callbacks per layer: the layer boundary
// (resid_pre and resid_post), the attention-sublayer exit, and the
// MLP-sublayer exit. Each callback detaches its tensor so nothing
// depends on the pass's working buffers afterwards. On a partial
// failure the registered hooks stay attached; callers must pair
// Install with a deferred Remove on every path.
func (p *SliceProbe) Install(a adapter.Adapter) error {
	for l := 0; l < p.layers; l++ {
		layer := l
		h, err := a.RegisterHook(adapter.PointLayer, layer, func(_ int, input, output adapter.Tensor) {
			p.residPre[layer] = input.Clone()
			p.residPost[layer] = output.Clone()
		})
		if err != nil {
			return err
		}
		p.handles = append(p.handles, h)

		h, err = a.RegisterHook(adapter.PointAttn, layer, func(_ int, _, output adapter.Tensor) {
			p.attnOut[layer] = output.Clone()
		})
		if err != nil {
			return err
		}
		p.handles = append(p.handles, h)

		h, err = a.RegisterHook(adapter.PointMLP, layer, func(_ int, _, output adapter.Tensor) {
			p.mlpOut[layer] = output.Clone()
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
func (p *SliceProbe) Remove() {
	for _, h := range p.handles {
		h.Remove()
	}
	p.handles = nil
}

// BlockHeat matches the coarse probe's definition exactly: mean row
// norm of resid_post - resid_pre, ignoring the separately captured
// sublayer outputs; 0.0 for layers missing either boundary tensor.
func (p *SliceProbe) BlockHeat() []float64 {
	heat := make([]float64, p.layers)
	for l := 0; l < p.layers; l++ {
		heat[l] = meanRowNorm(residualDelta(p.residPre[l], p.residPost[l]))
	}
	return heat
}

// dims returns (seq_len, d_model) from the first layer with a captured
// resid_pre, or zeros when nothing was captured at all.
func (p *SliceProbe) dims() (int, int) {
	for l := 0; l < p.layers; l++ {
		if !p.residPre[l].Empty() {
			return p.residPre[l].SeqLen, p.residPre[l].DModel
		}
	}
	return 0, 0
}

// layerSlices builds the six raw slices for one layer. Missing raw
// tensors are substituted with zeros so every layer contributes six
// equally shaped slices. delta_attn is attn_out by definition (the
// attention sublayer's output, not residual + attention); delta_mlp is
// resid_post - resid_pre - attn_out, the MLP sub-block's isolated
// contribution to the residual stream.
func (p *SliceProbe) layerSlices(layer, seqLen, dModel int) [NumSlices][]float32 {
	n := seqLen * dModel
	orZero := func(t adapter.Tensor) []float32 {
		if t.Empty() || len(t.Data) != n {
			return make([]float32, n)
		}
		return t.Data
	}

	pre := orZero(p.residPre[layer])
	attn := orZero(p.attnOut[layer])
	mlp := orZero(p.mlpOut[layer])
	post := orZero(p.residPost[layer])

	deltaMLP := make([]float32, n)
	for i := 0; i < n; i++ {
		deltaMLP[i] = post[i] - pre[i] - attn[i]
	}

	return [NumSlices][]float32{pre, attn, attn, mlp, deltaMLP, post}
}

// NormalizeAndSerialize produces the four streaming artifacts of one
// forward pass:
//
//	slice buffer: per layer, six slices percentile-normalized
//	  independently (never across layers), packed layer-major,
//	  slice-minor, row-major; element offset of (layer L, slice S)
//	  is (L*6 + S) * seq_len * d_model
//	metadata: slice order and dimensions
//	token proj: per (layer, slice), L2 norm over d_model for each
//	  position, normalized per vector
//	dim proj: per (layer, slice), L2 norm over positions for each
//	  channel, normalized per vector
//
// Projections are computed from the raw (pre-normalization) slices.
// With zero captured layers it returns empty buffers and seq_len=0,
// d_model=0: an explicit empty state, not an error.
func (p *SliceProbe) NormalizeAndSerialize() ([]byte, SliceMetadata, []byte, []byte) {
	meta := SliceMetadata{
		SliceTypes: SliceNames,
		NumLayers:  p.layers,
	}

	seqLen, dModel := p.dims()
	if seqLen == 0 || dModel == 0 {
		return nil, meta, nil, nil
	}
	meta.SeqLen = seqLen
	meta.DModel = dModel

	n := seqLen * dModel
	buf := make([]float32, p.layers*NumSlices*n)
	tokenProj := make([]float32, p.layers*NumSlices*seqLen)
	dimProj := make([]float32, p.layers*NumSlices*dModel)

	for layer := 0; layer < p.layers; layer++ {
		slices := p.layerSlices(layer, seqLen, dModel)
		for s, raw := range slices {
			offset := (layer*NumSlices + s) * n
			lo, hi := percentileBounds(raw, DefaultLowPercentile, DefaultHighPercentile)
			normalizeInto(buf[offset:offset+n], raw, lo, hi)

			tOffset := (layer*NumSlices + s) * seqLen
			copy(tokenProj[tOffset:tOffset+seqLen],
				PercentileNormalize(rowNorms(raw, seqLen, dModel), DefaultLowPercentile, DefaultHighPercentile))

			dOffset := (layer*NumSlices + s) * dModel
			copy(dimProj[dOffset:dOffset+dModel],
				PercentileNormalize(colNorms(raw, seqLen, dModel), DefaultLowPercentile, DefaultHighPercentile))
		}
	}

	return SerializeF32(buf), meta, SerializeF32(tokenProj), SerializeF32(dimProj)
}

// rowNorms reduces [seqLen, dModel] to the per-position L2 norm over
// channels.
func rowNorms(data []float32, seqLen, dModel int) []float32 {
	out := make([]float32, seqLen)
	for i := 0; i < seqLen; i++ {
		var sum float64
		for j := 0; j < dModel; j++ {
			v := float64(data[i*dModel+j])
			sum += v * v
		}
		out[i] = float32(math.Sqrt(sum))
	}
	return out
}

// colNorms reduces [seqLen, dModel] to the per-channel L2 norm over
// positions.
func colNorms(data []float32, seqLen, dModel int) []float32 {
	out := make([]float32, dModel)
	for j := 0; j < dModel; j++ {
		var sum float64
		for i := 0; i < seqLen; i++ {
			v := float64(data[i*dModel+j])
			sum += v * v
		}
		out[j] = float32(math.Sqrt(sum))
	}
	return out
}
