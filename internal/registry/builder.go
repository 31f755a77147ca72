package registry

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"

	"github.com/specialistvlad/graphcraft/internal/types"
)

var identifierRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)

// ImplOption customizes a registration.
type ImplOption func(*Implementation)

// WithGPU attaches a WGSL expression template.
func WithGPU(template string) ImplOption {
	return func(impl *Implementation) { impl.GPU = template }
}

// Impure marks an implementation whose result must never be cached.
func Impure() ImplOption {
	return func(impl *Implementation) { impl.Pure = false }
}

// WithDoc attaches a one-line description.
func WithDoc(doc string) ImplOption {
	return func(impl *Implementation) { impl.Doc = doc }
}

// Builder collects registrations. It is not safe for concurrent use.
type Builder struct {
	logger *slog.Logger
	defs   map[string]*Definition
	built  bool
}

// NewBuilder returns an empty builder. A nil logger discards output.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{logger: logger, defs: make(map[string]*Definition)}
}

// Install calls Register on each module in order and stops at the first error.
func (b *Builder) Install(modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(b); err != nil {
			return fmt.Errorf("module %T: %w", m, err)
		}
	}
	return nil
}

// Register adds an implementation of id with the signature sig, written as
// `(in, ...) -> out`. Registering an identical signature twice fails with a
// *DuplicateError; a different signature adds an overload.
func (b *Builder) Register(id, sig string, h Handler, opts ...ImplOption) error {
	parsed, err := types.ParseSignature(sig)
	if err != nil {
		return fmt.Errorf("node '%s': %w", id, err)
	}
	return b.RegisterSignature(id, parsed, h, opts...)
}

// RegisterSignature is Register with an already parsed signature.
func (b *Builder) RegisterSignature(id string, sig types.Signature, h Handler, opts ...ImplOption) error {
	if b.built {
		panic("registry: Register called after Build")
	}
	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	if h.Fn == nil {
		return fmt.Errorf("node '%s': handler has no function", id)
	}

	def, ok := b.defs[id]
	if !ok {
		def = &Definition{Identifier: id}
		b.defs[id] = def
	}
	for _, existing := range def.impls {
		if existing.Signature.Equal(sig) {
			return &DuplicateError{Identifier: id, Signature: sig.String()}
		}
	}

	impl := &Implementation{
		Identifier: id,
		Signature:  sig,
		Func:       h.Fn,
		Pure:       true,
		handler:    h,
	}
	for _, opt := range opts {
		opt(impl)
	}
	def.impls = append(def.impls, impl)

	b.logger.Debug("Registering node implementation.", "id", id, "signature", sig.String(), "gpu", impl.HasGPU(), "pure", impl.Pure)
	return nil
}

// Build validates every registration and returns the frozen registry. The
// builder must not be used afterwards.
func (b *Builder) Build() (*Registry, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	b.built = true
	reg := newRegistry(b.defs)
	b.logger.Debug("Registry built.", "identifiers", reg.Len())
	return reg, nil
}
