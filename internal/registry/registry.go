package registry

import (
	"sort"

	"github.com/specialistvlad/graphcraft/internal/types"
)

// Module is the interface that all compiled-in node modules implement.
type Module interface {
	Register(b *Builder) error
}

// Implementation is one concrete overload of a node identifier.
type Implementation struct {
	Identifier string
	Signature  types.Signature
	Func       NodeFunc
	// GPU is the WGSL expression template used by the shader generator.
	// Empty means the implementation cannot run on the GPU.
	GPU string
	// Pure implementations always produce the same output for the same
	// inputs and may be cached.
	Pure bool
	Doc  string

	handler Handler
}

// Key identifies the implementation among all registered ones.
func (impl *Implementation) Key() string {
	return impl.Identifier + " " + impl.Signature.String()
}

// HasGPU reports whether a GPU template was registered.
func (impl *Implementation) HasGPU() bool { return impl.GPU != "" }

// Definition groups the overloads of one identifier.
type Definition struct {
	Identifier string
	impls      []*Implementation
}

// Implementations returns the overloads in registration order.
func (d *Definition) Implementations() []*Implementation {
	out := make([]*Implementation, len(d.impls))
	copy(out, d.impls)
	return out
}

// Registry is the immutable result of Builder.Build.
type Registry struct {
	defs map[string]*Definition
	ids  []string
}

// Lookup returns the definition registered under id.
func (r *Registry) Lookup(id string) (*Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// Identifiers returns every registered identifier, sorted.
func (r *Registry) Identifiers() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Len is the number of identifiers.
func (r *Registry) Len() int { return len(r.defs) }

func newRegistry(defs map[string]*Definition) *Registry {
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Registry{defs: defs, ids: ids}
}
