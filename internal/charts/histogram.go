package charts

import (
	"cmp"
	"math"
	"slices"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	medianBuckets    = 12
	medianRangeScale = 4

	meanBuckets    = 15
	meanStepDivide = 5
	meanAxisScale  = 3
)

// BuildHistogram buckets a numeric sample into 12 equal ranges over
// [0, 4 x weighted median]. Mass beyond the last boundary is folded into the
// last bucket, so long tails never stretch the visible range.
func BuildHistogram(obs []NumericObservation) (Line, error) {
	return buildHistogram(obs, language.English)
}

func buildHistogram(obs []NumericObservation, locale language.Tag) (Line, error) {
	sorted := sortByValue(obs)

	count, sum := weigh(sorted)
	if count <= 0 {
		return Line{}, ErrEmptySample
	}

	median := weightedMedian(sorted, count)
	max := median * medianRangeScale
	stepSize := max / medianBuckets

	buckets := make([]int64, medianBuckets)
	index := 0
	for _, o := range sorted {
		for index < medianBuckets-1 && o.Value > float64(index+1)*stepSize {
			index++
		}
		buckets[index] += o.Total
	}

	p := message.NewPrinter(locale)
	return Line{
		Points:    midpoints(buckets, stepSize),
		AxisMin:   0,
		AxisMax:   max,
		AxisLabel: p.Sprintf("Total = %v", number.Decimal(sum, number.MaxFractionDigits(3))),
		Fill:      true,
		Tension:   0.1,
	}, nil
}

// BuildMeanHistogram is the mean-anchored variant: 15 buckets of mean/5,
// values beyond the last boundary folded into the last bucket, and an axis
// that stops at 3 x mean.
func BuildMeanHistogram(obs []NumericObservation) (Line, error) {
	count, sum := weigh(obs)
	if count <= 0 {
		return Line{}, ErrEmptySample
	}

	mean := sum / float64(count)
	stepSize := mean / meanStepDivide

	buckets := make([]int64, meanBuckets)
	for _, o := range obs {
		buckets[meanBucketIndex(o.Value, stepSize)] += o.Total
	}

	return Line{
		Points:    midpoints(buckets, stepSize),
		AxisMin:   0,
		AxisMax:   mean * meanAxisScale,
		AxisLabel: "Value",
		Fill:      true,
		Tension:   0.1,
	}, nil
}

func meanBucketIndex(value, stepSize float64) int {
	if stepSize <= 0 {
		return 0
	}
	index := math.Floor(math.Min(value/stepSize, meanBuckets-1))
	if index < 0 || math.IsNaN(index) {
		return 0
	}
	return int(index)
}

// sortByValue returns a copy of obs in ascending value order. The sort is
// stable so equal values keep their input order.
func sortByValue(obs []NumericObservation) []NumericObservation {
	sorted := slices.Clone(obs)
	slices.SortStableFunc(sorted, func(a, b NumericObservation) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return sorted
}

// weigh returns the total weight of a sample and its weighted value sum.
func weigh(obs []NumericObservation) (int64, float64) {
	var (
		count int64
		sum   float64
	)
	for _, o := range obs {
		count += o.Total
		sum += o.Value * float64(o.Total)
	}
	return count, sum
}

// weightedMedian returns the value at rank count/2 of the sample expanded
// into one entry per unit of weight, without materialising the expansion.
func weightedMedian(sorted []NumericObservation, count int64) float64 {
	rank := count / 2
	var seen int64
	for _, o := range sorted {
		seen += o.Total
		if rank < seen {
			return o.Value
		}
	}
	return sorted[len(sorted)-1].Value
}

func midpoints(buckets []int64, stepSize float64) []Point {
	points := make([]Point, len(buckets))
	for i, total := range buckets {
		points[i] = Point{
			X: math.Floor(float64(i)*stepSize + stepSize/2),
			Y: total,
		}
	}
	return points
}
