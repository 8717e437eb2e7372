package weights

import (
	"fmt"
	"sort"

	"github.com/mnemo-dev/mnemo/internal/domain"
)

// DefaultProfileName is used when neither a profile nor explicit weights are
// given and the analyzer has no suggestion.
const DefaultProfileName = "balanced"

// Registry holds named weight presets. Profiles are normalized on
// registration, so lookups always return fusion-ready weights.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry creates a registry pre-seeded with the built-in presets.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]Profile)}
	for name, p := range builtinProfiles {
		r.profiles[name] = p.Normalize()
	}
	return r
}

// builtinProfiles are the stock presets for common query shapes.
var builtinProfiles = map[string]Profile{
	"balanced":   {Vector: 0.35, Sparse: 0.25, Graph: 0.20, Fulltext: 0.20},
	"factual":    {Vector: 0.45, Sparse: 0.30, Graph: 0.10, Fulltext: 0.15},
	"conceptual": {Vector: 0.20, Sparse: 0.50, Graph: 0.20, Fulltext: 0.10},
	"relational": {Vector: 0.15, Sparse: 0.25, Graph: 0.50, Fulltext: 0.10},
	"keyword":    {Vector: 0.30, Sparse: 0.10, Graph: 0.10, Fulltext: 0.50},
}

// Get returns the named profile or ErrUnknownProfile.
func (r *Registry) Get(name string) (Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", domain.ErrUnknownProfile, name)
	}
	return p, nil
}

// Default returns the balanced preset.
func (r *Registry) Default() Profile {
	return r.profiles[DefaultProfileName]
}

// Register validates and stores a custom profile under name. Existing names
// are overwritten, which lets deployments tune the stock presets.
func (r *Registry) Register(name string, p Profile) error {
	if name == "" {
		return fmt.Errorf("%w: profile name is required", domain.ErrValidation)
	}
	valid, err := New(p.Vector, p.Sparse, p.Graph, p.Fulltext)
	if err != nil {
		return err
	}
	r.profiles[name] = valid.Normalize()
	return nil
}

// Names returns the registered profile names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
