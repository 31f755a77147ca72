package nodeid

// PathSegment represents a single component of an address path, e.g., `name[index]`.
type PathSegment struct {
	Name  string
	Index int // -1 indicates no index is present.
}

// NewPathSegment creates a new path segment without an index.
func NewPathSegment(name string) PathSegment {
	return PathSegment{Name: name, Index: -1}
}

// NewPathSegmentWithIndex creates a new path segment that includes an index.
func NewPathSegmentWithIndex(name string, index int) PathSegment {
	return PathSegment{Name: name, Index: index}
}

// HasIndex returns true if the path segment has an explicit index.
func (ps PathSegment) HasIndex() bool {
	return ps.Index != -1
}

// Address is the qualified path of a flattened node.
type Address struct {
	Path []PathSegment
}

// New builds an address from plain node ids.
func New(names ...string) *Address {
	a := &Address{Path: make([]PathSegment, 0, len(names))}
	for _, n := range names {
		a.Path = append(a.Path, NewPathSegment(n))
	}
	return a
}
