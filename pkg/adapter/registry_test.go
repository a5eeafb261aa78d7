package adapter

import (
	"context"
	"strings"
	"testing"
)

// stub is a minimal adapter for registry tests.
type stub struct {
	Echo
	desc Descriptor
}

func (s *stub) Descriptor() Descriptor { return s.desc }

func stubFactory(id string, aliases ...string) Factory {
	return func() Adapter {
		return &stub{desc: Descriptor{ID: id, Aliases: aliases}}
	}
}

func TestRegistry_Register(t *testing.T) {
	t.Run("duplicate id rejected", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(stubFactory("alpha")); err != nil {
			t.Fatalf("first register: %v", err)
		}
		err := r.Register(stubFactory("alpha"))
		if err == nil || !strings.Contains(err.Error(), "duplicate") {
			t.Errorf("err = %v, want duplicate id error", err)
		}
	})

	t.Run("alias collision rejected", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(stubFactory("alpha", "a")); err != nil {
			t.Fatalf("first register: %v", err)
		}
		err := r.Register(stubFactory("beta", "A"))
		if err == nil || !strings.Contains(err.Error(), "alias") {
			t.Errorf("err = %v, want alias collision error", err)
		}
	})

	t.Run("empty id rejected", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(stubFactory("")); err == nil {
			t.Error("expected error for empty id")
		}
	})
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubFactory("alpha", "alpha", "first")); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []struct {
		name  string
		query string
		want  string
		found bool
	}{
		{"by id", "alpha", "alpha", true},
		{"by id mixed case", "Alpha", "alpha", true},
		{"by alias", "first", "alpha", true},
		{"by alias mixed case", "FIRST", "alpha", true},
		{"unknown", "missing", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			factory, desc, ok := r.Resolve(tc.query)
			if ok != tc.found {
				t.Fatalf("found = %v, want %v", ok, tc.found)
			}
			if !tc.found {
				return
			}
			if desc.ID != tc.want {
				t.Errorf("id = %q, want %q", desc.ID, tc.want)
			}
			if factory == nil {
				t.Error("factory is nil")
			}
		})
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"gamma", "alpha", "beta"} {
		if err := r.Register(stubFactory(id)); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if list[i].ID != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].ID, want)
		}
	}
}

func TestRegistry_Default(t *testing.T) {
	r := Default()

	list := r.List()
	ids := make([]string, 0, len(list))
	for _, desc := range list {
		ids = append(ids, desc.ID)
	}
	if strings.Join(ids, ",") != "echo,synthetic-coarse,synthetic-tiny" {
		t.Fatalf("ids = %v", ids)
	}

	_, desc, ok := r.Resolve("tiny")
	if !ok || desc.ID != "synthetic-tiny" || desc.Activation != SupportFine {
		t.Errorf("tiny resolves to %+v, ok = %v", desc, ok)
	}
	_, desc, ok = r.Resolve("coarse")
	if !ok || desc.ID != "synthetic-coarse" || desc.Activation != SupportCoarse {
		t.Errorf("coarse resolves to %+v, ok = %v", desc, ok)
	}
	_, desc, ok = r.Resolve("echo")
	if !ok || desc.Activation != SupportNone {
		t.Errorf("echo resolves to %+v, ok = %v", desc, ok)
	}

	// Factories must return fresh instances: loading one must not mark
	// another as loaded.
	factory, _, _ := r.Resolve("tiny")
	a := factory()
	b := factory()
	_ = a.Load(context.Background(), LoadOptions{})
	if b.Loaded() {
		t.Error("factory instances share state")
	}
}
