package weights

import (
	"errors"
	"sort"
	"testing"

	"github.com/mnemo-dev/mnemo/internal/domain"
)

func TestRegistry_BuiltinsAreNormalized(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.Names() {
		p, err := r.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if !p.IsNormalized() {
			t.Errorf("profile %q not normalized, sum=%v", name, p.Sum())
		}
	}
}

func TestRegistry_DefaultIsBalanced(t *testing.T) {
	r := NewRegistry()
	p, err := r.Get(DefaultProfileName)
	if err != nil {
		t.Fatalf("Get(default): %v", err)
	}
	if p != r.Default() {
		t.Error("Default() does not match the balanced profile")
	}
	if !almostEqual(p.Vector, 0.35/1.0) {
		t.Errorf("expected balanced vector weight 0.35, got %v", p.Vector)
	}
}

func TestRegistry_UnknownProfile(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	if !errors.Is(err, domain.ErrUnknownProfile) {
		t.Errorf("expected ErrUnknownProfile, got %v", err)
	}
}

func TestRegistry_RegisterCustom(t *testing.T) {
	r := NewRegistry()
	p, err := New(1, 1, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("even", p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Get("even")
	if err != nil {
		t.Fatalf("Get(even): %v", err)
	}
	if !got.IsNormalized() {
		t.Errorf("expected registered profile to be normalized, sum=%v", got.Sum())
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	names := r.Names()
	if len(names) < 5 {
		t.Fatalf("expected at least 5 builtin profiles, got %d", len(names))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("expected sorted names, got %v", names)
	}
}
