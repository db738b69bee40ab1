// Package charts turns weighted (value, total) samples into chart series.
//
// A sample whose values are all numeric and large enough becomes a line
// series with a fixed number of buckets (a histogram). Anything else becomes
// a pie series with one slice per distinct value.
package charts

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// ErrEmptySample is returned when a sample carries no weight at all.
var ErrEmptySample = errors.New("charts: sample has no weight")

// Observation is a distinct observed value and how many times it was seen
type Observation struct {
	Value string `json:"value"`
	Total int64  `json:"total"`
}

// NumericObservation is an Observation whose value parsed as a finite number
type NumericObservation struct {
	Value float64 `json:"value"`
	Total int64   `json:"total"`
}

// SeriesType tags the variant held by a Series
type SeriesType string

const (
	SeriesPie  SeriesType = "pie"
	SeriesLine SeriesType = "line"
)

// Series is a chart payload: exactly one of Pie or Line is set, as named by Type.
type Series struct {
	Type SeriesType `json:"type"`
	Pie  *Pie       `json:"pie,omitempty"`
	Line *Line      `json:"line,omitempty"`
}

// Pie is a categorical series
type Pie struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
	Colors []string `json:"colors"`
}

// Point is one histogram bucket: X is the bucket midpoint, Y its weight
type Point struct {
	X float64 `json:"x"`
	Y int64   `json:"y"`
}

// Line is a numeric series with its axis metadata
type Line struct {
	Points    []Point `json:"points"`
	AxisMin   float64 `json:"axis_min"`
	AxisMax   float64 `json:"axis_max"`
	AxisLabel string  `json:"axis_label"`
	Fill      bool    `json:"fill"`
	Tension   float64 `json:"tension"`
}

// Strategy selects how numeric samples are bucketed
type Strategy string

const (
	// StrategyMedian anchors the range on the weighted median (12 buckets up to 4x median).
	StrategyMedian Strategy = "median"
	// StrategyMean anchors the range on the weighted mean (15 buckets of mean/5).
	StrategyMean Strategy = "mean"
)

// ParseStrategy validates a strategy name. The empty string selects the median strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyMedian:
		return StrategyMedian, nil
	case StrategyMean:
		return StrategyMean, nil
	}
	return "", fmt.Errorf("charts: unknown histogram strategy %q", s)
}

// Options controls chart construction
type Options struct {
	Strategy Strategy
	// Locale is used to format the numeric axis label. Defaults to English.
	Locale  language.Tag
	Palette []string
}

func (o Options) locale() language.Tag {
	if o.Locale == language.Und {
		return language.English
	}
	return o.Locale
}

// Build picks the series type for a sample and builds it. Numeric samples
// that carry no weight fall back to the categorical series.
func Build(rows []Observation, opts Options) (Series, error) {
	if numeric, ok := ClassifyObservations(rows); ok {
		var (
			line Line
			err  error
		)
		switch opts.Strategy {
		case StrategyMean:
			line, err = BuildMeanHistogram(numeric)
		case "", StrategyMedian:
			line, err = buildHistogram(numeric, opts.locale())
		default:
			return Series{}, fmt.Errorf("charts: unknown histogram strategy %q", opts.Strategy)
		}
		if err == nil {
			return Series{Type: SeriesLine, Line: &line}, nil
		}
		if !errors.Is(err, ErrEmptySample) {
			return Series{}, err
		}
	}

	pie := BuildCategoricalWithPalette(rows, opts.Palette)
	return Series{Type: SeriesPie, Pie: &pie}, nil
}
