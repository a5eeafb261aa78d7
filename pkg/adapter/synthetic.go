package adapter

import (
	"context"
	"math"
	"strings"
	"sync"
)

// SyntheticConfig sizes the built-in synthetic capability.
type SyntheticConfig struct {
	Layers    int
	DModel    int
	Heads     int
	KVHeads   int
	VocabSize int
	MaxSeqLen int
	Seed      uint64
}

func (c *SyntheticConfig) applyDefaults() {
	if c.Layers == 0 {
		c.Layers = 4
	}
	if c.DModel == 0 {
		c.DModel = 32
	}
	if c.Heads == 0 {
		c.Heads = 4
	}
	if c.KVHeads == 0 {
		c.KVHeads = 2
	}
	if c.VocabSize == 0 {
		c.VocabSize = 512
	}
	if c.MaxSeqLen == 0 {
		c.MaxSeqLen = 128
	}
	if c.Seed == 0 {
		c.Seed = 0x52494b55 // "RIKU"
	}
}

type hookKey struct {
	point Point
	layer int
}

// Synthetic is a self-contained deterministic transformer capability.
// It runs a real residual-stream computation (resid_post = resid_pre +
// attn_out + mlp_out per layer) over procedurally derived weights, so
// probes observe exact residual arithmetic without an external engine.
type Synthetic struct {
	desc Descriptor
	cfg  SyntheticConfig

	mu       sync.Mutex
	loaded   bool
	hooks    map[hookKey]map[int]HookFunc
	nextHook int
}

// NewSynthetic creates the fine-instrumented synthetic capability.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	cfg.applyDefaults()
	return &Synthetic{
		desc: Descriptor{
			ID:            "synthetic-tiny",
			DisplayName:   "Synthetic Tiny",
			Aliases:       []string{"synthetic-tiny", "synthetic", "tiny"},
			Layers:        cfg.Layers,
			Heads:         cfg.Heads,
			KVHeads:       cfg.KVHeads,
			DModel:        cfg.DModel,
			DIntermediate: cfg.DModel * 3,
			VocabSize:     cfg.VocabSize,
			MaxSeqLen:     cfg.MaxSeqLen,
			Parameters:    "procedural",
			Activation:    SupportFine,
		},
		cfg:   cfg,
		hooks: make(map[hookKey]map[int]HookFunc),
	}
}

// NewCoarseSynthetic creates a synthetic capability that only exposes
// layer-boundary hooks, exercising the coarse protocol branch.
func NewCoarseSynthetic() *Synthetic {
	cfg := SyntheticConfig{Layers: 3, DModel: 24, Heads: 3, KVHeads: 3, Seed: 0x434f4152}
	cfg.applyDefaults()
	s := NewSynthetic(cfg)
	s.desc.ID = "synthetic-coarse"
	s.desc.DisplayName = "Synthetic Coarse"
	s.desc.Aliases = []string{"synthetic-coarse", "coarse"}
	s.desc.Activation = SupportCoarse
	return s
}

func (s *Synthetic) Descriptor() Descriptor { return s.desc }

func (s *Synthetic) Load(_ context.Context, _ LoadOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	return nil
}

func (s *Synthetic) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Synthetic) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.hooks = make(map[hookKey]map[int]HookFunc)
}

type syntheticHandle struct {
	s   *Synthetic
	key hookKey
	id  int
}

// Remove detaches the hook. Safe to call more than once.
func (h *syntheticHandle) Remove() {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if set, ok := h.s.hooks[h.key]; ok {
		delete(set, h.id)
		if len(set) == 0 {
			delete(h.s.hooks, h.key)
		}
	}
}

func (s *Synthetic) RegisterHook(point Point, layer int, fn HookFunc) (HookHandle, error) {
	switch point {
	case PointLayer, PointAttn, PointMLP:
	default:
		return nil, ErrUnknownPoint
	}
	if s.desc.Activation == SupportCoarse && point != PointLayer {
		return nil, ErrNoInstrumentation
	}
	if layer < 0 || layer >= s.cfg.Layers {
		return nil, ErrLayerOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := hookKey{point: point, layer: layer}
	if s.hooks[key] == nil {
		s.hooks[key] = make(map[int]HookFunc)
	}
	s.nextHook++
	id := s.nextHook
	s.hooks[key][id] = fn
	return &syntheticHandle{s: s, key: key, id: id}, nil
}

func (s *Synthetic) fire(point Point, layer int, input, output Tensor) {
	s.mu.Lock()
	fns := make([]HookFunc, 0, 2)
	for _, fn := range s.hooks[hookKey{point: point, layer: layer}] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(layer, input, output)
	}
}

// Forward runs one full-sequence pass over the prompt, firing hooks.
func (s *Synthetic) Forward(_ context.Context, prompt string) error {
	if !s.Loaded() {
		return ErrNotLoaded
	}
	s.forwardPass(s.tokenize(prompt))
	return nil
}

// Generate runs the layer stack once over the prompt (firing hooks for
// any installed probes) and then samples tokens deterministically.
func (s *Synthetic) Generate(_ context.Context, prompt string, maxNewTokens int) (string, error) {
	if !s.Loaded() {
		return "", ErrNotLoaded
	}
	if maxNewTokens <= 0 {
		return "", nil
	}
	tokens := s.tokenize(prompt)
	s.forwardPass(tokens)

	state := s.cfg.Seed
	for _, tok := range tokens {
		state = mix64(state ^ uint64(tok))
	}
	var b strings.Builder
	for i := 0; i < maxNewTokens; i++ {
		state = mix64(state)
		word := syntheticVocab[state%uint64(len(syntheticVocab))]
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	return b.String(), nil
}

var syntheticVocab = []string{
	"the", "stream", "layer", "signal", "residual", "head", "token",
	"norm", "gate", "flows", "through", "carries", "shifts", "settles",
	"rises", "echoes", "a", "every", "its", "slowly",
}

// tokenize maps prompt bytes onto the synthetic vocabulary range.
// Empty prompts yield a single begin-of-sequence token so a forward
// pass always has one position.
func (s *Synthetic) tokenize(prompt string) []int32 {
	raw := []byte(prompt)
	n := len(raw)
	if n > s.cfg.MaxSeqLen {
		n = s.cfg.MaxSeqLen
	}
	if n == 0 {
		return []int32{0}
	}
	tokens := make([]int32, n)
	for i := 0; i < n; i++ {
		tokens[i] = int32(raw[i]) % int32(s.cfg.VocabSize)
	}
	return tokens
}

// forwardPass is the synthetic layer stack. Each layer contributes an
// attention mix and an MLP term to the residual stream and fires the
// matching instrumentation points.
func (s *Synthetic) forwardPass(tokens []int32) {
	seqLen := len(tokens)
	d := s.cfg.DModel

	x := make([]float32, seqLen*d)
	for i, tok := range tokens {
		for j := 0; j < d; j++ {
			x[i*d+j] = embedValue(s.cfg.Seed, tok, i, j)
		}
	}

	ctxMean := make([]float32, d)
	for l := 0; l < s.cfg.Layers; l++ {
		residPre := make([]float32, len(x))
		copy(residPre, x)

		// Attention stand-in: causal running mean mixed with a
		// per-layer rotated channel.
		attnOut := make([]float32, len(x))
		for j := range ctxMean {
			ctxMean[j] = 0
		}
		for i := 0; i < seqLen; i++ {
			inv := float32(1) / float32(i+1)
			for j := 0; j < d; j++ {
				ctxMean[j] += (x[i*d+j] - ctxMean[j]) * inv
			}
			rot := (l + 1) % d
			for j := 0; j < d; j++ {
				attnOut[i*d+j] = 0.5*ctxMean[j] + 0.25*x[i*d+(j+rot)%d]
			}
		}
		s.fire(PointAttn, l, Tensor{}, Tensor{Data: attnOut, SeqLen: seqLen, DModel: d})
		for i := range x {
			x[i] += attnOut[i]
		}

		// MLP stand-in: silu scaled by a per-layer channel weight.
		mlpOut := make([]float32, len(x))
		for i := 0; i < seqLen; i++ {
			for j := 0; j < d; j++ {
				v := x[i*d+j]
				w := mlpWeight(s.cfg.Seed, l, j)
				mlpOut[i*d+j] = silu(v) * w
			}
		}
		s.fire(PointMLP, l, Tensor{}, Tensor{Data: mlpOut, SeqLen: seqLen, DModel: d})
		for i := range x {
			x[i] += mlpOut[i]
		}

		residPost := make([]float32, len(x))
		copy(residPost, x)
		s.fire(PointLayer, l,
			Tensor{Data: residPre, SeqLen: seqLen, DModel: d},
			Tensor{Data: residPost, SeqLen: seqLen, DModel: d})
	}
}

func silu(v float32) float32 {
	return v / (1 + float32(math.Exp(-float64(v))))
}

// embedValue derives a stable embedding entry in [-1, 1].
func embedValue(seed uint64, tok int32, pos, dim int) float32 {
	h := mix64(seed ^ uint64(uint32(tok))<<32 ^ uint64(uint32(pos))<<16 ^ uint64(uint32(dim)))
	return float32(int64(h%2001)-1000) / 1000
}

// mlpWeight derives a stable per-layer channel weight in [0.5, 1.5).
func mlpWeight(seed uint64, layer, dim int) float32 {
	h := mix64(seed ^ 0xa5a5a5a5 ^ uint64(uint32(layer))<<20 ^ uint64(uint32(dim)))
	return 0.5 + float32(h%1000)/1000
}

func mix64(x uint64) uint64 {
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	if x == 0 {
		x = 0x9e3779b97f4a7c15
	}
	return x * 2685821657736338717
}
