package backends

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsBackendFromEnv(t *testing.T) {
	var gotSpec string
	Register("fake", func(cfg Config) (Backend, error) {
		gotSpec = cfg.Spec
		return nil, nil
	})
	t.Setenv(GOSHMEM_BACKEND, "fake:opt1,opt2")
	_, err := New(Config{})
	require.NoError(t, err)
	require.Equal(t, "opt1,opt2", gotSpec)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	t.Setenv(GOSHMEM_BACKEND, "no-such-backend")
	err := exceptions.TryCatch[error](func() { _, _ = New(Config{}) })
	require.Error(t, err)
}

func TestCompareSatisfies(t *testing.T) {
	cases := []struct {
		cmp       Compare
		got, want int64
		ok        bool
	}{
		{CmpEq, 3, 3, true},
		{CmpEq, 3, 4, false},
		{CmpNe, 3, 4, true},
		{CmpGt, 4, 3, true},
		{CmpGt, 3, 3, false},
		{CmpGe, 3, 3, true},
		{CmpLt, -1, 0, true},
		{CmpLe, 0, 0, true},
		{CmpLe, 1, 0, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, c.cmp.Satisfies(c.got, c.want), "%s(%d, %d)", c.cmp, c.got, c.want)
	}
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "Sum", ReduceSum.String())
	assert.Equal(t, "Xor", ReduceXor.String())
	op, err := ReduceOpString("min")
	require.NoError(t, err)
	assert.Equal(t, ReduceMin, op)
	_, err = ReduceOpString("nope")
	require.Error(t, err)

	assert.Equal(t, "Ge", CmpGe.String())
	assert.True(t, CmpLt.IsACompare())
	assert.False(t, Compare(42).IsACompare())
}
