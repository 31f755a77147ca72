package nodeid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var segmentPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_-]*)(?:\[(\d+)\])?$`)

// Parse reads a dotted node path such as "main.blur.kernel" or
// "main.split[1]". It is the inverse of Address.String.
func Parse(s string) (*Address, error) {
	if s == "" {
		return nil, fmt.Errorf("empty node path")
	}
	parts := strings.Split(s, ".")
	addr := &Address{Path: make([]PathSegment, 0, len(parts))}
	for i, part := range parts {
		m := segmentPattern.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("node path %q: bad segment %d %q", s, i, part)
		}
		seg := NewPathSegment(m[1])
		if m[2] != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, fmt.Errorf("node path %q: %w", s, err)
			}
			seg.Index = n
		}
		addr.Path = append(addr.Path, seg)
	}
	return addr, nil
}
