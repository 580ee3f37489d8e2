package points

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		points int
		want   int
	}{
		{-10, 1},
		{0, 1},
		{49, 1},
		{50, 2},
		{55, 2},
		{149, 2},
		{150, 3},
		{299, 3},
		{300, 4},
		{2999, 9},
		{3000, 10},
		{100000, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateLevel(tt.points), "points=%d", tt.points)
	}
}

func TestCalculateLevel_Monotonic(t *testing.T) {
	prev := CalculateLevel(0)
	for p := 1; p <= 3500; p++ {
		l := CalculateLevel(p)
		assert.GreaterOrEqual(t, l, prev)
		prev = l
	}
}

func TestPointsToNextLevel(t *testing.T) {
	assert.Equal(t, 50, PointsToNextLevel(0))
	assert.Equal(t, 1, PointsToNextLevel(49))
	assert.Equal(t, 100, PointsToNextLevel(50))
	assert.Equal(t, 0, PointsToNextLevel(3000))
}

func TestAmountFor(t *testing.T) {
	n, ok := AmountFor(ActionLessonCompleted)
	assert.True(t, ok)
	assert.Equal(t, 10, n)

	_, ok = AmountFor(Action("LIKE_REMOVED"))
	assert.False(t, ok)
}

func TestThresholds_Copy(t *testing.T) {
	th := Thresholds()
	th[1] = 1
	assert.Equal(t, 2, CalculateLevel(50))
	assert.Len(t, th, MaxLevel)
}
