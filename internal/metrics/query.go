package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Query is a metrics request as received from a client
type Query struct {
	Type    string
	StartAt int64 // epoch milliseconds
	EndAt   int64 // epoch milliseconds
	Limit   int
	Offset  int
	Search  string
	// Filters holds raw filter params keyed by filter name, e.g. "browser" -> "c.chrome".
	Filters map[string]string
}

// Operator is a filter comparison
type Operator string

const (
	OpEquals         Operator = "eq"
	OpNotEquals      Operator = "neq"
	OpContains       Operator = "c"
	OpDoesNotContain Operator = "dnc"
)

func (o Operator) valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpDoesNotContain:
		return true
	}
	return false
}

// Filter restricts the rows a metric is computed from
type Filter struct {
	Name     string   `json:"name"`
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Filters is the resolved filter set handed to a DataSource
type Filters struct {
	StartDate time.Time
	EndDate   time.Time
	Fields    map[string]Filter
}

// List returns the field filters ordered by name.
func (f Filters) List() []Filter {
	names := make([]string, 0, len(f.Fields))
	for name := range f.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]Filter, 0, len(names))
	for _, name := range names {
		list = append(list, f.Fields[name])
	}
	return list
}

// Metric types answered from session attributes
var sessionColumns = map[string]bool{
	"browser":  true,
	"os":       true,
	"device":   true,
	"screen":   true,
	"language": true,
	"country":  true,
	"region":   true,
	"city":     true,
}

// Metric types answered from pageview/event attributes
var eventColumns = map[string]bool{
	"url":      true,
	"entry":    true,
	"exit":     true,
	"referrer": true,
	"title":    true,
	"query":    true,
	"event":    true,
	"tag":      true,
	"host":     true,
}

// TypeChannel is the metric type answered by channel attribution
const TypeChannel = "channel"

// filterColumns maps a filter or metric name to its storage column
var filterColumns = map[string]string{
	"url":      "url_path",
	"entry":    "url_path",
	"exit":     "url_path",
	"referrer": "referrer_domain",
	"host":     "hostname",
	"title":    "page_title",
	"query":    "url_query",
	"event":    "event_name",
	"os":       "os",
	"browser":  "browser",
	"device":   "device",
	"screen":   "screen",
	"country":  "country",
	"region":   "region",
	"city":     "city",
	"language": "language",
	"tag":      "tag",
}

// FilterNames lists the query params accepted as filters.
var FilterNames = []string{
	"url", "referrer", "title", "query", "host", "event", "tag",
	"os", "browser", "device", "screen", "country", "region", "city", "language",
}

// Column returns the storage column for a filter or metric name. Unknown
// names map to themselves.
func Column(name string) string {
	if column, ok := filterColumns[name]; ok {
		return column
	}
	return name
}

// IsSessionColumn reports whether a metric type is a session attribute.
func IsSessionColumn(t string) bool { return sessionColumns[t] }

// IsEventColumn reports whether a metric type is a pageview attribute.
func IsEventColumn(t string) bool { return eventColumns[t] }

// IsKnownType reports whether Route can answer a metric type.
func IsKnownType(t string) bool {
	return sessionColumns[t] || eventColumns[t] || t == TypeChannel
}

// ParseFilter builds a Filter from a raw param. The value may carry an
// operator prefix ("neq.firefox"); without one the operator is eq.
func ParseFilter(name, raw string) Filter {
	filter := Filter{Name: name, Column: Column(name), Operator: OpEquals, Value: raw}
	if prefix, value, ok := strings.Cut(raw, "."); ok && Operator(prefix).valid() {
		filter.Operator = Operator(prefix)
		filter.Value = value
	}
	return filter
}

// Resolve derives the filter set for a query. A search term becomes a
// contains filter on the requested type, replacing any filter of that name.
// Only column-backed types take a search filter; channel labels are derived
// after the fetch, so Route matches the search against them instead.
func (q Query) Resolve() (Filters, error) {
	if q.EndAt < q.StartAt {
		return Filters{}, fmt.Errorf("%w: endAt %d is before startAt %d", ErrBadRequest, q.EndAt, q.StartAt)
	}

	filters := Filters{
		StartDate: time.UnixMilli(q.StartAt).UTC(),
		EndDate:   time.UnixMilli(q.EndAt).UTC(),
		Fields:    make(map[string]Filter),
	}
	for _, name := range FilterNames {
		if raw, ok := q.Filters[name]; ok && raw != "" {
			filters.Fields[name] = ParseFilter(name, raw)
		}
	}

	if q.Search != "" && (IsSessionColumn(q.Type) || IsEventColumn(q.Type)) {
		filters.Fields[q.Type] = Filter{
			Name:     q.Type,
			Column:   Column(q.Type),
			Operator: OpContains,
			Value:    q.Search,
		}
	}

	return filters, nil
}
