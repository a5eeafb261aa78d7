// Package adapter defines the model capability interface Rikugan
// instruments. An adapter wraps one model engine and exposes generation
// plus a finite set of named per-layer instrumentation points.
package adapter

import (
	"context"
	"errors"
)

// ActivationSupport declares which instrumentation a model capability
// exposes. It is fixed at registration time; dispatch switches on this
// tag rather than probing the adapter at runtime.
type ActivationSupport int

const (
	// SupportNone means the adapter can only generate text.
	SupportNone ActivationSupport = iota
	// SupportCoarse means per-layer boundary hooks are available.
	SupportCoarse
	// SupportFine means layer, attention, and MLP hooks are available.
	SupportFine
)

// String returns the support tag name used in API responses.
func (s ActivationSupport) String() string {
	switch s {
	case SupportCoarse:
		return "coarse"
	case SupportFine:
		return "fine"
	default:
		return "none"
	}
}

// Point names one instrumentation point class within a layer.
type Point int

const (
	// PointLayer fires at the layer boundary with both the layer's
	// input (resid_pre) and output (resid_post).
	PointLayer Point = iota
	// PointAttn fires at the attention-sublayer exit with its output.
	PointAttn
	// PointMLP fires at the MLP-sublayer exit with its output.
	PointMLP
)

// String returns the point name used in errors and logs.
func (p Point) String() string {
	switch p {
	case PointLayer:
		return "layer"
	case PointAttn:
		return "attn"
	case PointMLP:
		return "mlp"
	default:
		return "unknown"
	}
}

// Tensor is one captured activation, shaped [SeqLen, DModel] row-major.
// Hook callbacks receive tensors that may alias the adapter's working
// buffers; callers that retain data past the callback must Clone.
type Tensor struct {
	Data   []float32
	SeqLen int
	DModel int
}

// Clone returns a detached copy of the tensor.
func (t Tensor) Clone() Tensor {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return Tensor{Data: data, SeqLen: t.SeqLen, DModel: t.DModel}
}

// Empty reports whether the tensor carries no data.
func (t Tensor) Empty() bool {
	return len(t.Data) == 0 || t.SeqLen == 0 || t.DModel == 0
}

// HookFunc observes one instrumentation point firing. For PointLayer
// both input and output are set; for PointAttn and PointMLP only
// output is set and input is the zero Tensor.
type HookFunc func(layer int, input, output Tensor)

// HookHandle cancels one registered hook. Remove is idempotent.
type HookHandle interface {
	Remove()
}

// Descriptor is the static shape metadata for one model capability.
// It is immutable after registration.
type Descriptor struct {
	ID            string            `json:"adapter_id"`
	DisplayName   string            `json:"display_name"`
	Aliases       []string          `json:"aliases"`
	Layers        int               `json:"layers"`
	Heads         int               `json:"heads"`
	KVHeads       int               `json:"kv_heads"`
	DModel        int               `json:"d_model"`
	DIntermediate int               `json:"d_intermediate"`
	VocabSize     int               `json:"vocab_size"`
	MaxSeqLen     int               `json:"max_seq_len"`
	Parameters    string            `json:"parameters_approx"`
	Activation    ActivationSupport `json:"-"`
}

// LoadOptions carries placement settings for Load.
type LoadOptions struct {
	Device string
	DType  string
}

// Sentinel errors shared by adapter implementations.
var (
	ErrNotLoaded         = errors.New("adapter: model not loaded")
	ErrNoInstrumentation = errors.New("adapter: instrumentation not supported")
	ErrUnknownPoint      = errors.New("adapter: unknown instrumentation point")
	ErrLayerOutOfRange   = errors.New("adapter: layer index out of range")
)

// Adapter is the capability interface the probes and the protocol
// coordinator consume. Implementations own the model engine; Rikugan
// only ever sees activations and text through this contract.
type Adapter interface {
	// Descriptor returns the immutable shape metadata.
	Descriptor() Descriptor

	// Load makes the capability usable. Loading an already-loaded
	// adapter is a no-op.
	Load(ctx context.Context, opts LoadOptions) error

	// Loaded reports whether the capability is currently usable.
	Loaded() bool

	// Unload releases the capability's resources. Idempotent.
	Unload()

	// Generate runs prompt continuation and returns only the newly
	// generated text.
	Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error)

	// Forward runs a single full-sequence forward pass over the prompt
	// without decoding, firing any registered hooks.
	Forward(ctx context.Context, prompt string) error

	// RegisterHook attaches fn to the named point of one layer and
	// returns a handle that detaches it. Adapters whose descriptor
	// declares SupportNone return ErrNoInstrumentation.
	RegisterHook(point Point, layer int, fn HookFunc) (HookHandle, error)
}
