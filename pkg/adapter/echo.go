package adapter

import (
	"context"
	"strings"
	"sync"
)

// Echo is a generation-only capability with no instrumentation points.
// It exists so the bare-generation protocol branch stays exercised.
type Echo struct {
	mu     sync.Mutex
	loaded bool
}

// NewEcho creates the echo capability.
func NewEcho() *Echo { return &Echo{} }

func (e *Echo) Descriptor() Descriptor {
	return Descriptor{
		ID:          "echo",
		DisplayName: "Echo",
		Aliases:     []string{"echo"},
		Layers:      0,
		DModel:      0,
		VocabSize:   0,
		MaxSeqLen:   4096,
		Parameters:  "0",
		Activation:  SupportNone,
	}
}

func (e *Echo) Load(_ context.Context, _ LoadOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = true
	return nil
}

func (e *Echo) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *Echo) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
}

// Generate repeats the prompt's words up to the token budget.
func (e *Echo) Generate(_ context.Context, prompt string, maxNewTokens int) (string, error) {
	if !e.Loaded() {
		return "", ErrNotLoaded
	}
	words := strings.Fields(prompt)
	if len(words) == 0 {
		return "", nil
	}
	out := make([]string, 0, maxNewTokens)
	for i := 0; i < maxNewTokens; i++ {
		out = append(out, words[i%len(words)])
	}
	return strings.Join(out, " "), nil
}

func (e *Echo) Forward(_ context.Context, _ string) error {
	return ErrNoInstrumentation
}

func (e *Echo) RegisterHook(_ Point, _ int, _ HookFunc) (HookHandle, error) {
	return nil, ErrNoInstrumentation
}
