package charts

// DefaultPalette is the ordered slice colour list; positions past its end wrap around.
var DefaultPalette = []string{
	"#2680eb",
	"#9256d9",
	"#44b556",
	"#e68619",
	"#e34850",
	"#f7bd12",
	"#01bad7",
	"#6734bc",
	"#89c541",
	"#ffc301",
	"#ec1562",
	"#ffde06",
}

// BuildCategorical returns one pie slice per row, in input order.
func BuildCategorical(rows []Observation) Pie {
	return BuildCategoricalWithPalette(rows, nil)
}

// BuildCategoricalWithPalette is BuildCategorical with a custom palette. An
// empty palette selects DefaultPalette.
func BuildCategoricalWithPalette(rows []Observation, palette []string) Pie {
	if len(palette) == 0 {
		palette = DefaultPalette
	}

	pie := Pie{
		Labels: make([]string, len(rows)),
		Values: make([]int64, len(rows)),
		Colors: make([]string, len(rows)),
	}
	for i, row := range rows {
		pie.Labels[i] = row.Value
		pie.Values[i] = row.Total
		pie.Colors[i] = palette[i%len(palette)]
	}
	return pie
}
