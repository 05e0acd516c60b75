package solver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gnoverse/impact/internal/formula"
)

var scope = formula.Decls{"x": formula.SortInt, "y": formula.SortInt, "b": formula.SortBool}

func mustParse(t *testing.T, src string) formula.Formula {
	t.Helper()
	f, err := formula.Parse(src, scope)
	require.NoError(t, err)
	return f
}

func TestIsUnsat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src   string
		unsat bool
	}{
		{"x > 0 && x <= 0", true},
		{"x + 1 < x", false}, // wraps at 127
		{"x * 2 == 7", true},
		{"x * 3 == 9 && x > 0 && x < 10", false},
		{"x - y == 0 && x != y", true},
		{"-x == x && x != 0", false}, // -128
		{"b == !b", true},
		{"bit(x, 7) && x >= 0", true},
		{"bit(x, 0) && x == 6", true},
		{"x >= -128 && x <= 127", false},
		{"x < -128", true},
		{"true", false},
		{"false", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			p, err := NewProver(DefaultConfig())
			require.NoError(t, err)
			defer p.Close()

			unsat, err := p.IsUnsat(mustParse(t, tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.unsat, unsat)
		})
	}
}

func TestImplies(t *testing.T) {
	t.Parallel()

	p, err := NewProver(DefaultConfig())
	require.NoError(t, err)

	ok, err := p.Implies(mustParse(t, "x > 5"), mustParse(t, "x > 2"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Implies(mustParse(t, "x > 2"), mustParse(t, "x > 5"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 2, p.Stats().Queries)
	assert.Equal(t, 1, p.Stats().Unsat)
}

func TestModel(t *testing.T) {
	t.Parallel()

	p, err := NewProver(DefaultConfig())
	require.NoError(t, err)

	m, err := p.Model(mustParse(t, "x * 3 == 9 && x > 0 && x < 10 && y == x - 5 && b"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), m[formula.NewVar("x", formula.SortInt)])
	assert.Equal(t, int64(-2), m[formula.NewVar("y", formula.SortInt)])
	assert.Equal(t, int64(1), m[formula.NewVar("b", formula.SortBool)])

	_, err = p.Model(mustParse(t, "x > 0 && x < 0"))
	assert.ErrorIs(t, err, ErrUnsatisfiable)
}

func TestWiderIntegers(t *testing.T) {
	t.Parallel()

	p, err := NewProver(Config{IntWidth: 16})
	require.NoError(t, err)

	unsat, err := p.IsUnsat(mustParse(t, "x + 1 < x && x < 1000"))
	require.NoError(t, err)
	assert.True(t, unsat)

	m, err := p.Model(mustParse(t, "x == 1000"))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), m[formula.NewVar("x", formula.SortInt)])
}

func TestProverErrors(t *testing.T) {
	t.Parallel()

	_, err := NewProver(Config{IntWidth: 1})
	assert.Error(t, err)

	p, err := NewProver(DefaultConfig())
	require.NoError(t, err)

	_, err = p.IsUnsat(formula.NewVar("x", formula.SortInt))
	assert.ErrorIs(t, err, ErrUnsupported)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_, err = p.IsUnsat(formula.True())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = p.NewSAT()
	assert.ErrorIs(t, err, ErrClosed)
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) IsUnsat(f formula.Formula) (bool, error) {
	args := m.Called(f.String())
	return args.Bool(0), args.Error(1)
}

func (m *mockChecker) Close() error {
	return m.Called().Error(0)
}

func TestCachingProver(t *testing.T) {
	t.Parallel()

	inner := new(mockChecker)
	inner.On("IsUnsat", "(x > 0)").Return(false, nil).Once()
	inner.On("IsUnsat", "(x < 0)").Return(false, errors.New("boom")).Once()
	inner.On("Close").Return(nil).Once()

	p := NewCachingProver(inner)
	f := mustParse(t, "x > 0")

	for i := 0; i < 3; i++ {
		unsat, err := p.IsUnsat(f)
		require.NoError(t, err)
		assert.False(t, unsat)
	}
	_, err := p.IsUnsat(mustParse(t, "x < 0"))
	assert.Error(t, err)

	assert.Equal(t, CacheStats{Hits: 2, Misses: 1}, p.Stats())
	require.NoError(t, p.Close())
	inner.AssertExpectations(t)
}
