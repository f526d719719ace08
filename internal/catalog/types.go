package catalog

import (
	"fmt"
	"slices"
)

// Dataset is a numeric table with named columns.
type Dataset struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// Column returns the index of name.
func (d Dataset) Column(name string) (int, error) {
	i := slices.Index(d.Columns, name)
	if i < 0 {
		return 0, fmt.Errorf("column %q not found in %v", name, d.Columns)
	}
	return i, nil
}

// Model is a linear regression model.
type Model struct {
	Target   string    `json:"target"`
	Features []string  `json:"features"`
	Weights  []float64 `json:"weights"`
	Bias     float64   `json:"bias"`
}

// Predict evaluates the model on a feature vector.
func (m Model) Predict(features []float64) float64 {
	y := m.Bias
	for i, w := range m.Weights {
		y += w * features[i]
	}
	return y
}

// Metrics summarize a model evaluation.
type Metrics struct {
	MSE     float64 `json:"mse"`
	MAE     float64 `json:"mae"`
	Samples int     `json:"samples"`
}

// split separates the target column from the features of every row.
func (d Dataset) split(target string) ([][]float64, []float64, []string, error) {
	ti, err := d.Column(target)
	if err != nil {
		return nil, nil, nil, err
	}
	features := make([]string, 0, len(d.Columns)-1)
	for i, c := range d.Columns {
		if i != ti {
			features = append(features, c)
		}
	}
	xs := make([][]float64, 0, len(d.Rows))
	ys := make([]float64, 0, len(d.Rows))
	for n, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return nil, nil, nil, fmt.Errorf("row %d has %d values, want %d", n, len(row), len(d.Columns))
		}
		x := make([]float64, 0, len(features))
		for i, v := range row {
			if i != ti {
				x = append(x, v)
			}
		}
		xs = append(xs, x)
		ys = append(ys, row[ti])
	}
	return xs, ys, features, nil
}
