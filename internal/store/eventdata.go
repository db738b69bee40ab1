package store

import (
	"sort"

	"github.com/tidwall/gjson"

	"trafficlens/internal/charts"
)

// Property is one key seen in the payloads of one event
type Property struct {
	EventName    string `json:"event_name"`
	PropertyName string `json:"property_name"`
	Total        int64  `json:"total"`
}

// PropertyTally counts top-level payload keys per event name
type PropertyTally struct {
	index map[[2]string]int
	props []Property
}

func NewPropertyTally() *PropertyTally {
	return &PropertyTally{index: make(map[[2]string]int)}
}

// Add counts the keys of one payload. Payloads that are not JSON objects are ignored.
func (t *PropertyTally) Add(eventName string, data []byte) {
	if !gjson.ValidBytes(data) {
		return
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return
	}
	root.ForEach(func(key, _ gjson.Result) bool {
		k := [2]string{eventName, key.String()}
		if i, ok := t.index[k]; ok {
			t.props[i].Total++
			return true
		}
		t.index[k] = len(t.props)
		t.props = append(t.props, Property{EventName: eventName, PropertyName: key.String(), Total: 1})
		return true
	})
}

// Properties returns the tally ordered by total descending, then by event and property name.
func (t *PropertyTally) Properties() []Property {
	out := append([]Property{}, t.props...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].EventName != out[j].EventName {
			return out[i].EventName < out[j].EventName
		}
		return out[i].PropertyName < out[j].PropertyName
	})
	return out
}

// ValueTally counts the distinct values of one payload key
type ValueTally struct {
	property string
	index    map[string]int
	values   []charts.Observation
}

func NewValueTally(property string) *ValueTally {
	return &ValueTally{property: property, index: make(map[string]int)}
}

// Add counts the property's value in one payload. The key is matched
// literally, so names containing dots or wildcards are not treated as paths.
func (t *ValueTally) Add(data []byte) {
	if !gjson.ValidBytes(data) {
		return
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return
	}
	root.ForEach(func(key, value gjson.Result) bool {
		if key.String() != t.property {
			return true
		}
		t.count(valueText(value))
		return false
	})
}

func (t *ValueTally) count(v string) {
	if i, ok := t.index[v]; ok {
		t.values[i].Total++
		return
	}
	t.index[v] = len(t.values)
	t.values = append(t.values, charts.Observation{Value: v, Total: 1})
}

// Observations returns the tally ordered by total descending, then by value.
func (t *ValueTally) Observations() []charts.Observation {
	out := append([]charts.Observation{}, t.values...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// valueText renders a payload value as text. Objects and arrays keep their
// raw JSON; null becomes the empty string.
func valueText(v gjson.Result) string {
	switch v.Type {
	case gjson.JSON:
		return v.Raw
	case gjson.Null:
		return ""
	}
	return v.String()
}
