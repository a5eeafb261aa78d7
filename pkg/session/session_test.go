package session

import (
	"context"
	"sync"
	"testing"

	"github.com/rikugan-dev/rikugan/pkg/adapter"
)

// countingAdapter tracks load/unload calls around a usable flag.
type countingAdapter struct {
	mu      sync.Mutex
	id      string
	loaded  bool
	unloads int
}

func (c *countingAdapter) Descriptor() adapter.Descriptor {
	return adapter.Descriptor{ID: c.id, Activation: adapter.SupportNone}
}

func (c *countingAdapter) Load(_ context.Context, _ adapter.LoadOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	return nil
}

func (c *countingAdapter) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

func (c *countingAdapter) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.unloads++
}

func (c *countingAdapter) Generate(_ context.Context, _ string, _ int) (string, error) {
	return "", nil
}

func (c *countingAdapter) Forward(_ context.Context, _ string) error {
	return adapter.ErrNoInstrumentation
}

func (c *countingAdapter) RegisterHook(_ adapter.Point, _ int, _ adapter.HookFunc) (adapter.HookHandle, error) {
	return nil, adapter.ErrNoInstrumentation
}

func TestState_SwapTearsDownPrevious(t *testing.T) {
	s := New()
	a := &countingAdapter{id: "model-a", loaded: true}
	b := &countingAdapter{id: "model-b", loaded: true}

	s.Set(a, "model-a")
	s.Set(b, "model-b")

	if a.unloads != 1 {
		t.Errorf("model A unloaded %d times, want exactly 1", a.unloads)
	}
	if b.unloads != 0 {
		t.Errorf("model B unloaded %d times, want 0", b.unloads)
	}

	active, id, ok := s.Active()
	if !ok || id != "model-b" || active != adapter.Adapter(b) {
		t.Fatalf("active = (%v, %q, %v), want model B", active, id, ok)
	}
}

func TestState_ReadyReload(t *testing.T) {
	s := New()
	a := &countingAdapter{id: "model-a", loaded: true}
	s.Set(a, "model-a")

	if !s.Ready("model-a") {
		t.Fatal("expected active model to report ready")
	}
	if s.Ready("model-b") {
		t.Fatal("different identifier must not report ready")
	}

	a.loaded = false
	if s.Ready("model-a") {
		t.Fatal("unusable instance must not report ready")
	}
}

func TestState_Clear(t *testing.T) {
	s := New()
	a := &countingAdapter{id: "model-a", loaded: true}
	s.Set(a, "model-a")

	s.Clear()
	if a.unloads != 1 {
		t.Errorf("unloads = %d, want 1", a.unloads)
	}
	if _, _, ok := s.Active(); ok {
		t.Fatal("slot should be empty after Clear")
	}

	// Clearing an empty slot is a no-op.
	s.Clear()
	if a.unloads != 1 {
		t.Errorf("unloads after second clear = %d, want 1", a.unloads)
	}
}
