package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_String(t *testing.T) {
	assert.Equal(t, "main.blur", New("main", "blur").String())
	assert.Equal(t, "main.split[1]", (&Address{Path: []PathSegment{
		NewPathSegment("main"), NewPathSegmentWithIndex("split", 1),
	}}).String())

	var none *Address
	assert.Equal(t, "", none.String())
}

func TestAddress_Child(t *testing.T) {
	parent := New("main")
	child := parent.Child("blur").Child("kernel")

	assert.Equal(t, "main", parent.String(), "Child must not modify the receiver")
	assert.Equal(t, "main.blur.kernel", child.String())

	var root *Address
	assert.Equal(t, "main", root.Child("main").String())
}

func TestParse_RoundTrip(t *testing.T) {
	for _, path := range []string{"main", "main.s.twice", "main.split[1]", "main.http-client.get[0]"} {
		t.Run(path, func(t *testing.T) {
			addr, err := Parse(path)
			require.NoError(t, err)
			assert.Equal(t, path, addr.String())
		})
	}
}
