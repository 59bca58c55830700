package activeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Set{Start: 0, Stride: 1, Size: 1}.Validate())
	require.NoError(t, Set{Start: 3, Stride: 4, Size: 10}.Validate())
	require.Error(t, Set{Start: -1, Stride: 1, Size: 1}.Validate())
	require.Error(t, Set{Start: 0, Stride: 0, Size: 1}.Validate())
	require.Error(t, Set{Start: 0, Stride: -2, Size: 3}.Validate())
	require.Error(t, Set{Start: 0, Stride: 1, Size: 0}.Validate())
}

func TestTranslateIsInverseOfPE(t *testing.T) {
	sets := []Set{
		{Start: 0, Stride: 1, Size: 8},
		{Start: 1, Stride: 2, Size: 3},
		{Start: 5, Stride: 3, Size: 4},
		{Start: 7, Stride: 1, Size: 1},
	}
	for _, s := range sets {
		for idx := 0; idx < s.Size; idx++ {
			pe := s.PE(idx)
			got, ok := s.Translate(pe)
			assert.True(t, ok, "set %+v: PE(%d)=%d should be a member", s, idx, pe)
			assert.Equal(t, idx, got, "set %+v: Translate(PE(%d))", s, idx)
		}
	}
}

func TestTranslateRejectsNonMembers(t *testing.T) {
	s := Set{Start: 1, Stride: 2, Size: 3} // members: 1, 3, 5
	for pe := 0; pe < 10; pe++ {
		_, ok := s.Translate(pe)
		member := pe == 1 || pe == 3 || pe == 5
		assert.Equal(t, member, ok, "pe=%d", pe)
	}
	_, ok := s.Translate(-1)
	assert.False(t, ok)
}

func TestContainsAndEnd(t *testing.T) {
	s := Set{Start: 2, Stride: 3, Size: 4} // members: 2, 5, 8, 11
	assert.True(t, s.Contains(2))
	assert.True(t, s.Contains(11))
	assert.False(t, s.Contains(3))
	assert.False(t, s.Contains(14))
	assert.Equal(t, 11, s.End())
}

func TestProjectComposesIntoParentCoordinates(t *testing.T) {
	parent := Set{Start: 1, Stride: 2, Size: 8} // parent members: 1,3,...,15
	child := Set{Start: 1, Stride: 3, Size: 2}  // parent ranks 1 and 4
	world := child.Project(parent)
	require.Equal(t, Set{Start: 3, Stride: 6, Size: 2}, world)

	// The projection must name exactly the parent members the child selects.
	for idx := 0; idx < child.Size; idx++ {
		assert.Equal(t, parent.PE(child.PE(idx)), world.PE(idx))
	}
}

func TestProjectThroughIdentityParent(t *testing.T) {
	parent := Set{Start: 0, Stride: 1, Size: 16}
	child := Set{Start: 4, Stride: 2, Size: 5}
	require.Equal(t, child, child.Project(parent))
}
