package testutil

import "github.com/specialistvlad/graphcraft/internal/registry"

// SimpleModule is a test helper for easily creating a mock module that
// registers a single implementation.
type SimpleModule struct {
	ID        string
	Signature string
	Handler   registry.Handler
	Options   []registry.ImplOption
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(b *registry.Builder) error {
	return b.Register(m.ID, m.Signature, m.Handler, m.Options...)
}

// Modules joins module lists, for adding mocks to a set of real modules.
func Modules(groups ...[]registry.Module) []registry.Module {
	var out []registry.Module
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
