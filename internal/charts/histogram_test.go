package charts_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/charts"
)

func numericSample(pairs ...float64) []charts.NumericObservation {
	obs := make([]charts.NumericObservation, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		obs = append(obs, charts.NumericObservation{Value: pairs[i], Total: int64(pairs[i+1])})
	}
	return obs
}

func sumY(points []charts.Point) int64 {
	var total int64
	for _, p := range points {
		total += p.Y
	}
	return total
}

func TestBuildHistogram(t *testing.T) {
	t.Run("ten through one hundred", func(t *testing.T) {
		// counts 10..100 in steps of 10 -> median 60, max 240, step 20
		obs := numericSample(10, 1, 20, 1, 30, 1, 40, 1, 50, 1, 60, 1, 70, 1, 80, 1, 90, 1, 100, 1)

		line, err := charts.BuildHistogram(obs)
		require.NoError(t, err)

		want := []charts.Point{
			{X: 10, Y: 2},
			{X: 30, Y: 2},
			{X: 50, Y: 2},
			{X: 70, Y: 2},
			{X: 90, Y: 2},
			{X: 110, Y: 0},
			{X: 130, Y: 0},
			{X: 150, Y: 0},
			{X: 170, Y: 0},
			{X: 190, Y: 0},
			{X: 210, Y: 0},
			{X: 230, Y: 0},
		}
		if diff := cmp.Diff(want, line.Points); diff != "" {
			t.Errorf("points mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, 0.0, line.AxisMin)
		assert.Equal(t, 240.0, line.AxisMax)
		assert.Equal(t, "Total = 550", line.AxisLabel)
		assert.True(t, line.Fill)
		assert.Equal(t, 0.1, line.Tension)
	})

	t.Run("small median floors midpoints onto repeated x", func(t *testing.T) {
		// median 1 -> step 1/3, midpoints (2i+1)/6 floored
		line, err := charts.BuildHistogram(numericSample(1, 10))
		require.NoError(t, err)

		xs := make([]float64, len(line.Points))
		for i, p := range line.Points {
			xs[i] = p.X
		}
		assert.Equal(t, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3}, xs)
		assert.Equal(t, int64(10), line.Points[2].Y)
		assert.Equal(t, int64(10), sumY(line.Points))
	})

	t.Run("weighted median uses totals", func(t *testing.T) {
		// expanded: 1,1,1,1,1,1,1,2,3,... -> rank 5 of 10 lands on 1
		obs := numericSample(1, 7, 2, 1, 3, 1, 4, 1)

		line, err := charts.BuildHistogram(obs)
		require.NoError(t, err)
		assert.Equal(t, 4.0, line.AxisMax)
	})

	t.Run("input order does not matter", func(t *testing.T) {
		sorted := numericSample(3, 2, 6, 4, 9, 1, 12, 3, 15, 5)
		shuffled := numericSample(12, 3, 3, 2, 15, 5, 9, 1, 6, 4)

		a, err := charts.BuildHistogram(sorted)
		require.NoError(t, err)
		b, err := charts.BuildHistogram(shuffled)
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("does not reorder the caller's slice", func(t *testing.T) {
		obs := numericSample(5, 1, 1, 1, 3, 1)
		_, err := charts.BuildHistogram(obs)
		require.NoError(t, err)
		assert.Equal(t, 5.0, obs[0].Value)
	})

	t.Run("outliers fold into the last bucket", func(t *testing.T) {
		obs := numericSample(1, 1, 2, 1, 3, 1, 4, 1, 5, 1, 6, 1, 7, 1, 8, 1, 9, 1, 10000, 1)

		line, err := charts.BuildHistogram(obs)
		require.NoError(t, err)
		require.Len(t, line.Points, 12)
		assert.Equal(t, int64(1), line.Points[11].Y)
		assert.Equal(t, 24.0, line.AxisMax)
		assert.Equal(t, "Total = 10,045", line.AxisLabel)
	})

	t.Run("identical values land in one bucket", func(t *testing.T) {
		obs := numericSample(5, 3, 5, 4, 5, 2)

		line, err := charts.BuildHistogram(obs)
		require.NoError(t, err)

		nonZero := 0
		for _, p := range line.Points {
			if p.Y > 0 {
				nonZero++
				assert.Equal(t, int64(9), p.Y)
			}
		}
		assert.Equal(t, 1, nonZero)
	})

	t.Run("bucket midpoints increase evenly", func(t *testing.T) {
		obs := numericSample(15, 2, 30, 5, 45, 3, 60, 1)

		line, err := charts.BuildHistogram(obs)
		require.NoError(t, err)

		// median 30 -> step 10
		for i := 1; i < len(line.Points); i++ {
			assert.Equal(t, 10.0, line.Points[i].X-line.Points[i-1].X)
		}
		assert.Equal(t, int64(11), sumY(line.Points))
	})

	t.Run("fractional sums keep up to three decimals", func(t *testing.T) {
		obs := numericSample(1234.5678, 1)

		line, err := charts.BuildHistogram(obs)
		require.NoError(t, err)
		assert.Equal(t, "Total = 1,234.568", line.AxisLabel)
	})

	t.Run("zero median collapses the range", func(t *testing.T) {
		obs := numericSample(0, 9, 3, 1)

		line, err := charts.BuildHistogram(obs)
		require.NoError(t, err)
		assert.Equal(t, 0.0, line.AxisMax)
		assert.Equal(t, int64(1), line.Points[11].Y)
		assert.Equal(t, int64(10), sumY(line.Points))
	})

	t.Run("no weight is an error", func(t *testing.T) {
		_, err := charts.BuildHistogram(numericSample(1, 0, 2, 0))
		assert.ErrorIs(t, err, charts.ErrEmptySample)

		_, err = charts.BuildHistogram(nil)
		assert.ErrorIs(t, err, charts.ErrEmptySample)
	})
}

func TestBuildHistogramPreservesMass(t *testing.T) {
	samples := [][]charts.NumericObservation{
		numericSample(1, 1, 2, 2, 3, 3),
		numericSample(100, 50, 1, 1, 2500, 3, 7, 9),
		numericSample(-4, 2, 0, 1, 4, 8, 12, 1),
		numericSample(0.5, 10, 0.75, 10, 1.25, 10),
	}

	for _, obs := range samples {
		var want int64
		for _, o := range obs {
			want += o.Total
		}

		line, err := charts.BuildHistogram(obs)
		require.NoError(t, err)
		assert.Len(t, line.Points, 12)
		assert.Equal(t, want, sumY(line.Points))
	}
}

func TestBuildMeanHistogram(t *testing.T) {
	t.Run("fifteen buckets of mean over five", func(t *testing.T) {
		// mean 50 -> step 10
		obs := numericSample(10, 1, 30, 3, 150, 1)

		line, err := charts.BuildMeanHistogram(obs)
		require.NoError(t, err)
		require.Len(t, line.Points, 15)

		assert.Equal(t, 5.0, line.Points[0].X)
		assert.Equal(t, int64(1), line.Points[1].Y)
		assert.Equal(t, int64(3), line.Points[3].Y)
		assert.Equal(t, int64(1), line.Points[14].Y)
		assert.Equal(t, 150.0, line.AxisMax)
		assert.Equal(t, "Value", line.AxisLabel)
		assert.Equal(t, int64(5), sumY(line.Points))
	})

	t.Run("negative values land in the first bucket", func(t *testing.T) {
		obs := numericSample(-10, 1, 20, 3)

		line, err := charts.BuildMeanHistogram(obs)
		require.NoError(t, err)
		assert.Equal(t, int64(1), line.Points[0].Y)
		assert.Equal(t, int64(4), sumY(line.Points))
	})

	t.Run("no weight is an error", func(t *testing.T) {
		_, err := charts.BuildMeanHistogram(numericSample(3, 0))
		assert.ErrorIs(t, err, charts.ErrEmptySample)
	})
}
