// Package persona provides the static registry of voicebot personas.
// Personas are built once at process start from a fixed preset list and
// are never mutated afterwards.
package persona

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownPersona is returned when a persona name is not registered.
var ErrUnknownPersona = errors.New("unknown persona")

// Persona identifies one voicebot character.
type Persona struct {
	// Name is the unique persona key.
	Name string
	// Voice is the synthesis voice identifier passed to the speech gateway.
	Voice string
	// Avatar is an opaque display asset reference for the UI layer.
	Avatar string
}

func (p Persona) String() string {
	return fmt.Sprintf("<Persona: %s>", p.Name)
}

// Registry holds an immutable set of personas keyed by name.
// Registry is safe for concurrent use: it is never written after construction.
type Registry struct {
	personas map[string]Persona
}

// NewRegistry builds a registry from the given personas.
func NewRegistry(personas []Persona) *Registry {
	m := make(map[string]Persona, len(personas))
	for _, p := range personas {
		m[p.Name] = p
	}
	return &Registry{personas: m}
}

// DefaultRegistry returns the registry of built-in personas.
func DefaultRegistry() *Registry {
	return NewRegistry([]Persona{
		{Name: "Alice", Voice: "nova", Avatar: "alice.jpeg"},
		{Name: "John", Voice: "onyx", Avatar: "john.jpeg"},
		{Name: "Sophia", Voice: "shimmer", Avatar: "sophia.jpeg"},
	})
}

// Resolve returns the persona registered under name.
// Returns ErrUnknownPersona if the name is not registered.
func (r *Registry) Resolve(name string) (Persona, error) {
	p, ok := r.personas[name]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, name)
	}
	return p, nil
}

// All returns every registered persona sorted by name.
func (r *Registry) All() []Persona {
	out := make([]Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
