package merge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlan_CoversSource(t *testing.T) {
	for l := 0; l <= 23; l++ {
		source := make([]int, l)
		for i := range source {
			source[i] = i
		}
		for d := 1; d <= 25; d++ {
			parts, err := Plan(source, d)
			require.NoError(t, err)

			want := l / d
			if l%d != 0 {
				want++
			}
			require.Len(t, parts, want, "len=%d depth=%d", l, d)

			joined := make([]int, 0, l)
			for i, p := range parts {
				require.Equal(t, i, p.Index)
				require.Equal(t, p.High-p.Low, len(p.Items))
				if i < len(parts)-1 {
					require.Len(t, p.Items, d, "only the last partition may be short")
				}
				joined = append(joined, p.Items...)
			}
			require.Equal(t, source, joined, "len=%d depth=%d", l, d)
		}
	}
}

func TestPlan_Scenario(t *testing.T) {
	parts, err := Plan([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 3)
	require.NoError(t, err)

	got := make([][]int, 0, len(parts))
	for _, p := range parts {
		got = append(got, p.Items)
	}
	require.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {10}}, got)
	require.Equal(t, 9, parts[3].Low)
	require.Equal(t, 10, parts[3].High)
}

func TestPlan_InvalidDepth(t *testing.T) {
	for _, d := range []int{0, -1, -100} {
		parts, err := Plan([]int{1, 2, 3}, d)
		require.ErrorIs(t, err, ErrInvalidChunkSize)
		require.Nil(t, parts)
	}
}

func TestPlan_EmptyAndHugeDepth(t *testing.T) {
	parts, err := Plan([]string(nil), 4)
	require.NoError(t, err)
	require.Empty(t, parts)

	ints, err := Plan([]int{1, 2}, int(^uint(0)>>1))
	require.NoError(t, err)
	require.Len(t, ints, 1)
	require.Equal(t, []int{1, 2}, ints[0].Items)
}

func TestPlan_AppendDoesNotClobberNeighbour(t *testing.T) {
	source := []int{1, 2, 3, 4}
	parts, err := Plan(source, 2)
	require.NoError(t, err)

	_ = append(parts[0].Items, 99)
	require.Equal(t, []int{1, 2, 3, 4}, source)
}
