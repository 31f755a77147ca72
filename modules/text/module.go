// Package text provides string nodes.
package text

import (
	"math"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/registry"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Module implements the registry.Module interface for this package. The
// zero value formats and cases text for English.
type Module struct {
	Language language.Tag
}

// Register registers the text nodes and the string overload of math.add.
func (m *Module) Register(b *registry.Builder) error {
	tag := m.Language
	if tag == language.Und {
		tag = language.English
	}
	regs := []struct {
		id, sig string
		h       registry.Handler
	}{
		{"text.concat", "(string, string) -> string", registry.Pure2(concat)},
		{"math.add", "(string, string) -> string", registry.Pure2(concat)},
		{"text.upper", "(string) -> string", registry.Pure1(func(s string) string { return cases.Upper(tag).String(s) })},
		{"text.lower", "(string) -> string", registry.Pure1(func(s string) string { return cases.Lower(tag).String(s) })},
		{"text.title", "(string) -> string", registry.Pure1(func(s string) string { return cases.Title(tag).String(s) })},
		{"text.trim", "(string) -> string", registry.Pure1(strings.TrimSpace)},
		{"text.format", "(number) -> string", registry.Pure1(func(f float64) string { return format(tag, f) })},
		{"text.length", "(string) -> number", registry.Pure1(func(s string) int { return len([]rune(s)) })},
	}
	for _, r := range regs {
		if err := b.Register(r.id, r.sig, r.h); err != nil {
			return err
		}
	}
	return nil
}

func concat(a, b string) string { return a + b }

// format renders f with the digit grouping of tag. Integral values print
// without a fractional part.
func format(tag language.Tag, f float64) string {
	p := message.NewPrinter(tag)
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return p.Sprintf("%d", int64(f))
	}
	return p.Sprintf("%v", f)
}
