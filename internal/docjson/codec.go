package docjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/graph"
	"github.com/specialistvlad/graphcraft/internal/registry"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// UnresolvedKey is the metadata key holding the original identifier of a
// node that was replaced by a stub on load.
const UnresolvedKey = "graphcraft.unresolved"

// Identifiers of the stub nodes used for unknown identifiers.
const (
	PassthroughID = "core.passthrough"
	ErrorStubID   = "core.error"
)

// ErrUnsupportedVersion is returned for documents written by a newer format.
var ErrUnsupportedVersion = errors.New("unsupported document version")

// LoadIssue reports a node that could not be resolved on load.
type LoadIssue struct {
	Network     string
	Node        graph.NodeID
	Identifier  string
	Stub        string
	Suggestions []string
}

func (i *LoadIssue) Error() string {
	msg := fmt.Sprintf("network '%s', node '%s': unknown node '%s', replaced by %s", i.Network, i.Node, i.Identifier, i.Stub)
	if len(i.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(i.Suggestions, ", "))
	}
	return msg
}

// Marshal encodes doc. Output is deterministic: nodes are written in id order.
func Marshal(doc *graph.Document) ([]byte, error) {
	f := fileJSON{Version: doc.Version, Main: doc.Main, Networks: make(map[string]*networkJSON, len(doc.Networks))}
	for _, name := range doc.NetworkNames() {
		n, err := encodeNetwork(doc.Networks[name])
		if err != nil {
			return nil, fmt.Errorf("network '%s': %w", name, err)
		}
		f.Networks[name] = n
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNetwork(n *graph.NodeNetwork) (*networkJSON, error) {
	out := &networkJSON{Nodes: []*nodeJSON{}, Exports: []exportJSON{}}
	for _, in := range n.Inputs {
		ty, err := ctyjson.MarshalType(in.Type)
		if err != nil {
			return nil, fmt.Errorf("input '%s': %w", in.Name, err)
		}
		out.Inputs = append(out.Inputs, inputDeclJSON{Name: in.Name, Type: ty})
	}

	for _, id := range n.SortedIDs() {
		node := n.Nodes[id]
		nj := &nodeJSON{ID: string(node.ID), Op: node.Implementation.Identifier, Network: node.Implementation.Network}
		meta := make(map[string]string, len(node.Metadata))
		for k, v := range node.Metadata {
			meta[k] = v
		}
		if orig, ok := meta[UnresolvedKey]; ok {
			nj.Op = orig
			delete(meta, UnresolvedKey)
		}
		if len(meta) > 0 {
			nj.Metadata = meta
		}
		for slot, in := range node.Inputs {
			ij, err := encodeInput(in)
			if err != nil {
				return nil, fmt.Errorf("node '%s' input %d: %w", id, slot, err)
			}
			nj.Inputs = append(nj.Inputs, ij)
		}
		out.Nodes = append(out.Nodes, nj)
	}

	for _, exp := range n.Exports {
		out.Exports = append(out.Exports, exportJSON{Node: string(exp.Node), Output: exp.Output})
	}
	return out, nil
}

func encodeInput(in graph.NodeInput) (inputJSON, error) {
	switch in.Kind {
	case graph.InputValue:
		ty, err := ctyjson.MarshalType(in.Value.Type())
		if err != nil {
			return inputJSON{}, err
		}
		val, err := ctyjson.Marshal(in.Value, in.Value.Type())
		if err != nil {
			return inputJSON{}, err
		}
		return inputJSON{Value: &valueJSON{Type: ty, Value: val}}, nil
	case graph.InputNode:
		return inputJSON{Node: string(in.Node), Output: in.Output}, nil
	case graph.InputNetwork:
		idx := in.Index
		return inputJSON{NetworkInput: &idx}, nil
	}
	return inputJSON{}, fmt.Errorf("unknown input kind %s", in.Kind)
}

// Unmarshal decodes a document. When reg is not nil, nodes naming unknown
// identifiers are replaced by stubs and reported as issues; the document is
// still returned.
func Unmarshal(data []byte, reg *registry.Registry) (*graph.Document, []*LoadIssue, error) {
	var f fileJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if f.Version != graph.CurrentVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.Version)
	}

	doc := graph.NewDocument(f.Main)
	var issues []*LoadIssue
	for name, nj := range f.Networks {
		n, netIssues, err := decodeNetwork(name, nj, reg)
		if err != nil {
			return nil, nil, fmt.Errorf("network '%s': %w", name, err)
		}
		issues = append(issues, netIssues...)
		if err := doc.AddNetwork(n); err != nil {
			return nil, nil, err
		}
	}
	sortIssues(issues)
	return doc, issues, nil
}

// Load reads and decodes a document file.
func Load(path string, reg *registry.Registry) (*graph.Document, []*LoadIssue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	doc, issues, err := Unmarshal(data, reg)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, issues, nil
}

// Save encodes doc and writes it to path.
func Save(path string, doc *graph.Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func decodeNetwork(name string, nj *networkJSON, reg *registry.Registry) (*graph.NodeNetwork, []*LoadIssue, error) {
	if nj == nil {
		return nil, nil, errors.New("network is null")
	}
	n := graph.NewNetwork(name)
	for _, in := range nj.Inputs {
		ty, err := ctyjson.UnmarshalType(in.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("input '%s': %w", in.Name, err)
		}
		n.Inputs = append(n.Inputs, graph.InputDecl{Name: in.Name, Type: ty})
	}

	var issues []*LoadIssue
	for _, nodeJ := range nj.Nodes {
		node := &graph.DocumentNode{
			ID:             graph.NodeID(nodeJ.ID),
			Implementation: graph.Implementation{Identifier: nodeJ.Op, Network: nodeJ.Network},
			Metadata:       nodeJ.Metadata,
		}
		for slot, ij := range nodeJ.Inputs {
			in, err := decodeInput(ij)
			if err != nil {
				return nil, nil, fmt.Errorf("node '%s' input %d: %w", nodeJ.ID, slot, err)
			}
			node.Inputs = append(node.Inputs, in)
		}
		if issue := stubUnknown(name, node, reg); issue != nil {
			issues = append(issues, issue)
		}
		if err := n.AddNode(node); err != nil {
			return nil, nil, err
		}
	}

	for _, e := range nj.Exports {
		n.Export(graph.NodeID(e.Node), e.Output)
	}
	return n, issues, nil
}

func decodeInput(ij inputJSON) (graph.NodeInput, error) {
	set := 0
	if ij.Value != nil {
		set++
	}
	if ij.Node != "" {
		set++
	}
	if ij.NetworkInput != nil {
		set++
	}
	if set != 1 {
		return graph.NodeInput{}, errors.New("exactly one of value, node or network_input must be set")
	}

	switch {
	case ij.Value != nil:
		ty, err := ctyjson.UnmarshalType(ij.Value.Type)
		if err != nil {
			return graph.NodeInput{}, err
		}
		v, err := ctyjson.Unmarshal(ij.Value.Value, ty)
		if err != nil {
			return graph.NodeInput{}, err
		}
		return graph.Value(v), nil
	case ij.Node != "":
		return graph.RefOutput(graph.NodeID(ij.Node), ij.Output), nil
	default:
		return graph.NetworkInput(*ij.NetworkInput), nil
	}
}

// stubUnknown replaces an unknown operation by a stub in place.
func stubUnknown(network string, node *graph.DocumentNode, reg *registry.Registry) *LoadIssue {
	id := node.Implementation.Identifier
	if reg == nil || id == "" {
		return nil
	}
	if _, ok := reg.Lookup(id); ok {
		return nil
	}

	stub := ErrorStubID
	if len(node.Inputs) > 0 {
		stub = PassthroughID
	}
	if node.Metadata == nil {
		node.Metadata = make(map[string]string)
	}
	node.Metadata[UnresolvedKey] = id
	node.Implementation = graph.Op(stub)

	return &LoadIssue{
		Network:     network,
		Node:        node.ID,
		Identifier:  id,
		Stub:        stub,
		Suggestions: reg.Suggest(id),
	}
}

func sortIssues(issues []*LoadIssue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Network != issues[j].Network {
			return issues[i].Network < issues[j].Network
		}
		return issues[i].Node < issues[j].Node
	})
}
