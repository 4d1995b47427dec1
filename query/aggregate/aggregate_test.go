package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyMax(t *testing.T) {
	v, err := Apply(Max, []float64{3, 1, 4, 1, 5})
	require.NoError(t, err)
	require.Equal(t, 5.0, v)
}

func TestApplyMin(t *testing.T) {
	v, err := Apply(Min, []float64{3, 1, 4, 1, 5})
	require.NoError(t, err)
	require.Equal(t, 1.0, v)
}

func TestApplySum(t *testing.T) {
	v, err := Apply(Sum, []float64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 6.0, v)
}

func TestApplyAvg(t *testing.T) {
	v, err := Apply(Avg, []float64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 2.0, v)
}

func TestApplyEmptyErrors(t *testing.T) {
	_, err := Apply(Sum, nil)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestApproxAverage(t *testing.T) {
	a, err := NewApproxAverage()
	require.NoError(t, err)
	for i := 1; i <= 100; i++ {
		require.NoError(t, a.Add(float64(i)))
	}
	est, err := a.Estimate()
	require.NoError(t, err)
	require.InDelta(t, 50.5, est, 2.0)
}
