package transform

import (
	"github.com/rotisserie/eris"
)

// Registry maps transformer names to their implementations.
type Registry struct {
	transformers map[string]Transformer
	order        []string // insertion order for deterministic iteration
}

// NewRegistry creates a registry populated with all four source
// transformers.
func NewRegistry() *Registry {
	r := &Registry{
		transformers: make(map[string]Transformer),
	}

	r.Register(&GradeTransformer{})
	r.Register(&CombineTransformer{})
	r.Register(&CollegeStatsTransformer{})
	r.Register(&ProjectionTransformer{})

	return r
}

// NewEmptyRegistry creates a registry with no transformers registered.
func NewEmptyRegistry() *Registry {
	return &Registry{transformers: make(map[string]Transformer)}
}

// Register adds a transformer to the registry.
func (r *Registry) Register(t Transformer) {
	name := t.Name()
	r.transformers[name] = t
	r.order = append(r.order, name)
}

// Get returns a transformer by name.
func (r *Registry) Get(name string) (Transformer, error) {
	t, ok := r.transformers[name]
	if !ok {
		return nil, eris.Errorf("transform: unknown transformer %q", name)
	}
	return t, nil
}

// All returns all transformers in registration order.
func (r *Registry) All() []Transformer {
	result := make([]Transformer, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.transformers[name])
	}
	return result
}

// AllNames returns all registered transformer names in registration order.
func (r *Registry) AllNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
