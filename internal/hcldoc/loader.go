package hcldoc

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/fsutil"
	"github.com/specialistvlad/graphcraft/internal/graph"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot is a struct used to decode all top-level content of any file.
type fileRoot struct {
	Main     *string         `hcl:"main,optional"`
	Networks []*networkBlock `hcl:"network,block"`
}

type networkBlock struct {
	Name   string         `hcl:"name,label"`
	Inputs []*inputBlock  `hcl:"input,block"`
	Nodes  []*nodeBlock   `hcl:"node,block"`
	Export hcl.Expression `hcl:"export,optional"`
}

type inputBlock struct {
	Name string         `hcl:"name,label"`
	Type hcl.Expression `hcl:"type,optional"`
}

type nodeBlock struct {
	ID      string            `hcl:"id,label"`
	Op      *string           `hcl:"op,optional"`
	Network *string           `hcl:"network,optional"`
	Args    hcl.Expression    `hcl:"args,optional"`
	Meta    map[string]string `hcl:"meta,optional"`
}

// Load parses every .hcl file under the given paths into one document.
func Load(ctx context.Context, paths ...string) (*graph.Document, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL document loader started.", "path_count", len(paths))

	var files []string
	for _, p := range paths {
		found, err := fsutil.FindFilesByExtension(p, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to search for HCL files in %s: %w", p, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, errors.New("no .hcl files found")
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	l := &loader{doc: graph.NewDocument("main")}
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := l.decodeFile(ctx, file, hclFile); err != nil {
			return nil, err
		}
	}

	logger.Debug("HCL document loaded.", "networks", len(l.doc.Networks), "main", l.doc.Main)
	return l.doc, nil
}

// Parse decodes a single HCL source.
func Parse(ctx context.Context, filename string, src []byte) (*graph.Document, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	l := &loader{doc: graph.NewDocument("main")}
	if err := l.decodeFile(ctx, filename, hclFile); err != nil {
		return nil, err
	}
	return l.doc, nil
}

type loader struct {
	doc     *graph.Document
	mainSet string
}

func (l *loader) decodeFile(ctx context.Context, filename string, f *hcl.File) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	if root.Main != nil {
		if l.mainSet != "" {
			return fmt.Errorf("%s: main is already set in %s", filename, l.mainSet)
		}
		l.doc.Main = *root.Main
		l.mainSet = filename
	}

	for _, nb := range root.Networks {
		n, err := translateNetwork(ctx, nb)
		if err != nil {
			return err
		}
		if err := l.doc.AddNetwork(n); err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
	}
	return nil
}

func translateNetwork(ctx context.Context, nb *networkBlock) (*graph.NodeNetwork, error) {
	n := graph.NewNetwork(nb.Name)
	for _, in := range nb.Inputs {
		ty := cty.DynamicPseudoType
		if isExprDefined(ctx, in.Type, "type") {
			parsed, err := types.FromHCL(in.Type)
			if err != nil {
				return nil, fmt.Errorf("%s: network '%s', input '%s': %w", in.Type.Range(), nb.Name, in.Name, err)
			}
			t, ok := parsed.Type()
			if !ok {
				return nil, fmt.Errorf("%s: network '%s', input '%s': input types must be concrete", in.Type.Range(), nb.Name, in.Name)
			}
			ty = t
		}
		n.Inputs = append(n.Inputs, graph.InputDecl{Name: in.Name, Type: ty})
	}

	for _, block := range nb.Nodes {
		node, err := translateNode(ctx, n, block)
		if err != nil {
			return nil, fmt.Errorf("network '%s', node '%s': %w", nb.Name, block.ID, err)
		}
		if err := n.AddNode(node); err != nil {
			return nil, err
		}
	}

	if isExprDefined(ctx, nb.Export, "export") {
		exprs, diags := hcl.ExprList(nb.Export)
		if diags.HasErrors() {
			return nil, fmt.Errorf("network '%s': export must be a list: %w", nb.Name, diags)
		}
		for _, expr := range exprs {
			in, err := translateRef(n, expr)
			if err != nil {
				return nil, fmt.Errorf("network '%s': export: %w", nb.Name, err)
			}
			if in.Kind != graph.InputNode {
				return nil, fmt.Errorf("%s: network '%s': export must reference a node", expr.Range(), nb.Name)
			}
			n.Export(in.Node, in.Output)
		}
	}
	return n, nil
}

func translateNode(ctx context.Context, n *graph.NodeNetwork, block *nodeBlock) (*graph.DocumentNode, error) {
	node := &graph.DocumentNode{ID: graph.NodeID(block.ID), Metadata: block.Meta}
	switch {
	case block.Op != nil && block.Network != nil:
		return nil, errors.New("only one of op and network may be set")
	case block.Op != nil:
		node.Implementation = graph.Op(*block.Op)
	case block.Network != nil:
		node.Implementation = graph.Net(*block.Network)
	default:
		return nil, errors.New("one of op or network must be set")
	}

	if !isExprDefined(ctx, block.Args, "args") {
		return node, nil
	}
	exprs, diags := hcl.ExprList(block.Args)
	if diags.HasErrors() {
		return nil, fmt.Errorf("args must be a list: %w", diags)
	}
	for _, expr := range exprs {
		in, err := translateRef(n, expr)
		if err != nil {
			return nil, err
		}
		node.Inputs = append(node.Inputs, in)
	}
	return node, nil
}

// ReadValue parses and evaluates a constant expression, as used for
// command-line inputs.
func ReadValue(src string) (cty.Value, error) {
	return ParseValue([]byte(src), "<input>")
}

// ReadValueFile is ReadValue for the contents of a file.
func ReadValueFile(path string) (cty.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return cty.NilVal, err
	}
	return ParseValue(src, path)
}
