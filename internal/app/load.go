package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/docjson"
	"github.com/specialistvlad/graphcraft/internal/graph"
	"github.com/specialistvlad/graphcraft/internal/hcldoc"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// LoadDocument reads the graph at path: a .json document, or a .hcl file or
// a directory of them.
func (a *App) LoadDocument(ctx context.Context, path string) (*graph.Document, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading graph document...", "path", path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
		doc, issues, err := docjson.Load(path, a.registry)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph: %w", err)
		}
		for _, issue := range issues {
			logger.Warn("Unresolved node replaced by a stub.", "issue", issue.Error())
		}
		return doc, nil
	}

	doc, err := hcldoc.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	return doc, nil
}

// bindInputs parses the "name=expression" assignments against the main
// network of doc. The result has one entry per declared input; unassigned
// inputs are cty.NilVal.
func bindInputs(doc *graph.Document, assignments []string) ([]cty.Value, error) {
	main, ok := doc.MainNetwork()
	if !ok {
		if len(assignments) > 0 {
			return nil, fmt.Errorf("main network '%s' not found", doc.Main)
		}
		return nil, nil
	}

	values := make([]cty.Value, main.Arity())
	for _, assignment := range assignments {
		name, src, _ := strings.Cut(assignment, "=")
		name = strings.TrimSpace(name)
		idx, ok := main.InputIndex(name)
		if !ok {
			return nil, fmt.Errorf("network '%s' has no input '%s'", main.Name, name)
		}
		v, err := hcldoc.ReadValue(src)
		if err != nil {
			return nil, fmt.Errorf("input '%s': %w", name, err)
		}
		v, err = conform(v, main.Inputs[idx].Type)
		if err != nil {
			return nil, fmt.Errorf("input '%s': %w", name, err)
		}
		values[idx] = v
	}
	for i, v := range values {
		if v.Type() == cty.NilType {
			return nil, fmt.Errorf("input '%s' of network '%s' has no value", main.Inputs[i].Name, main.Name)
		}
	}
	return values, nil
}

// conform converts v to the declared type, or to a list of it when v holds
// one value per lane. Without a declaration, tuples of a single element
// type become lists.
func conform(v cty.Value, declared cty.Type) (cty.Value, error) {
	if declared == cty.NilType || declared == cty.DynamicPseudoType {
		t := v.Type()
		if !t.IsTupleType() || v.LengthInt() == 0 {
			return v, nil
		}
		elems := t.TupleElementTypes()
		for _, et := range elems[1:] {
			if !et.Equals(elems[0]) {
				return v, nil
			}
		}
		return convert.Convert(v, cty.List(elems[0]))
	}
	if cv, err := convert.Convert(v, declared); err == nil {
		return cv, nil
	}
	cv, err := convert.Convert(v, cty.List(declared))
	if err != nil {
		return cty.NilVal, fmt.Errorf("value of type %s does not fit %s", types.TypeString(v.Type()), types.TypeString(declared))
	}
	return cv, nil
}
