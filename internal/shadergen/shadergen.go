package shadergen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/graphcraft/internal/proto"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
)

// EntryPoint is the name of the generated compute entry point.
const EntryPoint = "main"

// DefaultWorkgroupSize is used when no option overrides it.
const DefaultWorkgroupSize = 64

// Role tells whether a binding feeds the shader or receives its results.
type Role int

const (
	RoleInput Role = iota
	RoleOutput
)

func (r Role) String() string {
	if r == RoleOutput {
		return "output"
	}
	return "input"
}

// Binding describes one storage buffer of the generated shader. Type is the
// element type as seen by the graph; bool elements are stored as u32.
type Binding struct {
	Group   int
	Binding int
	Name    string
	Type    cty.Type
	Access  string
	Role    Role
	// Index is the network input index for inputs and the network output
	// index for outputs.
	Index int
}

// Shader is the result of Generate.
type Shader struct {
	Source        string
	EntryPoint    string
	WorkgroupSize int
	Bindings      []Binding
	// Network is the hash of the network the shader was generated from.
	Network types.Digest
}

// Inputs returns the input bindings in network input order.
func (s *Shader) Inputs() []Binding { return s.filter(RoleInput) }

// Outputs returns the output bindings in network output order.
func (s *Shader) Outputs() []Binding { return s.filter(RoleOutput) }

func (s *Shader) filter(r Role) []Binding {
	var out []Binding
	for _, b := range s.Bindings {
		if b.Role == r {
			out = append(out, b)
		}
	}
	return out
}

type options struct {
	workgroupSize int
	group         int
}

// Option customizes Generate.
type Option func(*options)

// WithWorkgroupSize sets the workgroup size of the entry point.
func WithWorkgroupSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workgroupSize = n
		}
	}
}

// WithGroup sets the bind group used for every buffer.
func WithGroup(g int) Option {
	return func(o *options) { o.group = g }
}

// Supported reports whether values of t can cross the shader boundary.
func Supported(t cty.Type) bool {
	_, _, ok := wgslTypes(t)
	return ok
}

// wgslTypes returns the WGSL type used for locals and for buffer elements.
func wgslTypes(t cty.Type) (local, storage string, ok bool) {
	switch {
	case t.Equals(cty.Number):
		return "f32", "f32", true
	case t.Equals(cty.Bool):
		return "bool", "u32", true
	}
	return "", "", false
}

// Generate lowers net into WGSL. Every problem found is reported at once in
// an *UncompilableError.
func Generate(net *proto.Network, opts ...Option) (*Shader, error) {
	o := options{workgroupSize: DefaultWorkgroupSize}
	for _, opt := range opts {
		opt(&o)
	}

	g := &generator{net: net, opts: o}
	g.checkInterface()
	body := g.body()
	if len(g.offenders) > 0 {
		return nil, &UncompilableError{Offenders: g.offenders}
	}

	var src strings.Builder
	fmt.Fprintf(&src, "// network %s\n\n", net.Hash.Short())
	for _, b := range g.bindings {
		_, storage, _ := wgslTypes(b.Type)
		fmt.Fprintf(&src, "@group(%d) @binding(%d) var<storage, %s> %s: array<%s>;\n", b.Group, b.Binding, b.Access, b.Name, storage)
	}
	fmt.Fprintf(&src, "\n@compute @workgroup_size(%d)\n", o.workgroupSize)
	fmt.Fprintf(&src, "fn %s(@builtin(global_invocation_id) gid: vec3<u32>) {\n", EntryPoint)
	src.WriteString("    let i = gid.x;\n")
	fmt.Fprintf(&src, "    if (i >= arrayLength(&%s)) {\n        return;\n    }\n", g.bindings[len(g.bindings)-1].Name)
	src.WriteString(body)
	src.WriteString("}\n")

	return &Shader{
		Source:        src.String(),
		EntryPoint:    EntryPoint,
		WorkgroupSize: o.workgroupSize,
		Bindings:      g.bindings,
		Network:       net.Hash,
	}, nil
}

type generator struct {
	net       *proto.Network
	opts      options
	bindings  []Binding
	offenders []Offender
}

func (g *generator) fail(path, id, format string, args ...any) {
	g.offenders = append(g.offenders, Offender{Path: path, Identifier: id, Reason: fmt.Sprintf(format, args...)})
}

func (g *generator) checkInterface() {
	for k, p := range g.net.Inputs {
		if !Supported(p.Type) {
			g.fail(fmt.Sprintf("$%d %s", k, p.Name), "", "input type %s is not supported on the GPU", types.TypeString(p.Type))
		}
		g.bindings = append(g.bindings, Binding{
			Group: g.opts.group, Binding: len(g.bindings), Name: fmt.Sprintf("in%d", k),
			Type: p.Type, Access: "read", Role: RoleInput, Index: k,
		})
	}
	if len(g.net.Outputs) == 0 {
		g.fail("network", "", "network has no outputs")
		return
	}
	for k, idx := range g.net.Outputs {
		g.bindings = append(g.bindings, Binding{
			Group: g.opts.group, Binding: len(g.bindings), Name: fmt.Sprintf("out%d", k),
			Type: g.net.Nodes[idx].OutputType, Access: "read_write", Role: RoleOutput, Index: k,
		})
	}
}

func (g *generator) body() string {
	var b strings.Builder
	for k, p := range g.net.Inputs {
		local, _, ok := wgslTypes(p.Type)
		if !ok {
			continue
		}
		if p.Type.Equals(cty.Bool) {
			fmt.Fprintf(&b, "    let x%d: bool = in%d[i] != 0u;\n", k, k)
		} else {
			fmt.Fprintf(&b, "    let x%d: %s = in%d[i];\n", k, local, k)
		}
	}

	for idx, node := range g.net.Nodes {
		expr, ok := g.node(node)
		if !ok {
			continue
		}
		local, _, _ := wgslTypes(node.OutputType)
		fmt.Fprintf(&b, "    // %s\n", node.Path)
		fmt.Fprintf(&b, "    let n%d: %s = %s;\n", idx, local, expr)
	}

	for k, idx := range g.net.Outputs {
		if g.net.Nodes[idx].OutputType.Equals(cty.Bool) {
			fmt.Fprintf(&b, "    out%d[i] = select(0u, 1u, n%d);\n", k, idx)
		} else {
			fmt.Fprintf(&b, "    out%d[i] = n%d;\n", k, idx)
		}
	}
	return b.String()
}

// node renders the WGSL expression of one node, reporting offenders.
func (g *generator) node(node *proto.Node) (string, bool) {
	ok := true
	if node.Impl == nil || !node.Impl.HasGPU() {
		g.fail(node.Path, node.Identifier, "implementation %s has no GPU template", node.ImplKey)
		ok = false
	}
	out, _, supported := wgslTypes(node.OutputType)
	if !supported {
		g.fail(node.Path, node.Identifier, "output type %s is not supported on the GPU", types.TypeString(node.OutputType))
		ok = false
	}

	args := make([]string, len(node.Inputs))
	ins := make([]string, len(node.Inputs))
	for slot, in := range node.Inputs {
		local, _, supported := wgslTypes(node.InputTypes[slot])
		if !supported {
			g.fail(node.Path, node.Identifier, "input %d type %s is not supported on the GPU", slot, types.TypeString(node.InputTypes[slot]))
			ok = false
			continue
		}
		ins[slot] = local
		switch in.Kind {
		case proto.Const:
			lit, err := Literal(in.Value)
			if err != nil {
				g.fail(node.Path, node.Identifier, "input %d: %v", slot, err)
				ok = false
				continue
			}
			args[slot] = lit
		case proto.NodeRef:
			args[slot] = fmt.Sprintf("n%d", in.Node)
		case proto.External:
			args[slot] = fmt.Sprintf("x%d", in.External)
		}
	}
	if !ok {
		return "", false
	}

	expr, err := Render(node.Impl.GPU, args, out, ins)
	if err != nil {
		g.fail(node.Path, node.Identifier, "%v", err)
		return "", false
	}
	return expr, true
}

// argName is the template variable bound to input slot i.
func argName(i int) string {
	if i < 26 {
		return string(rune('a' + i))
	}
	return fmt.Sprintf("arg%d", i)
}

// Render evaluates a GPU template. args are the WGSL expressions of the
// inputs, out and ins the WGSL types of the output and inputs.
func Render(template string, args []string, out string, ins []string) (string, error) {
	expr, diags := hclsyntax.ParseTemplate([]byte(template), "gpu", hcl.InitialPos)
	if diags.HasErrors() {
		return "", fmt.Errorf("invalid GPU template: %w", diags)
	}
	vars := map[string]cty.Value{"T": cty.StringVal(out)}
	for i, a := range args {
		vars[argName(i)] = cty.StringVal(a)
		if i < len(ins) {
			vars[fmt.Sprintf("in%d", i)] = cty.StringVal(ins[i])
		}
	}
	v, diags := expr.Value(&hcl.EvalContext{Variables: vars})
	if diags.HasErrors() {
		return "", fmt.Errorf("rendering GPU template: %w", diags)
	}
	if !v.Type().Equals(cty.String) || v.IsNull() || !v.IsKnown() {
		return "", fmt.Errorf("GPU template must render to a string, got %s", types.TypeString(v.Type()))
	}
	s := strings.TrimSpace(v.AsString())
	if s == "" {
		return "", fmt.Errorf("GPU template rendered an empty expression")
	}
	return "(" + s + ")", nil
}

// Literal formats a constant as a WGSL literal.
func Literal(v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", fmt.Errorf("constant must be known and not null")
	}
	switch {
	case v.Type().Equals(cty.Bool):
		return strconv.FormatBool(v.True()), nil
	case v.Type().Equals(cty.Number):
		f, _ := v.AsBigFloat().Float64()
		if math.IsInf(f, 0) || math.Abs(f) > math.MaxFloat32 {
			return "", fmt.Errorf("constant %s is out of f32 range", v.AsBigFloat().String())
		}
		s := strconv.FormatFloat(f, 'g', -1, 32)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		if f < 0 {
			s = "(" + s + ")"
		}
		return s, nil
	}
	return "", fmt.Errorf("constant of type %s is not supported on the GPU", types.TypeString(v.Type()))
}
