package bidpredict

import (
	"fmt"
	"math"
)

// Scaler standardizes feature matrices against frozen per-column means and
// stddevs. A fitted scaler is immutable; the inference path only ever calls
// Transform on it.
type Scaler struct {
	columns []string
	mean    []float64
	std     []float64
}

// NewScaler builds a scaler from frozen parameters, typically decoded from a
// versioned artifact. Zero stddevs are coerced to 1 so constant columns pass
// through centered instead of dividing by zero.
func NewScaler(columns []string, mean, std []float64) (*Scaler, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("scaler: no columns")
	}
	if len(mean) != len(columns) || len(std) != len(columns) {
		return nil, fmt.Errorf("scaler: %d columns but %d means and %d stddevs", len(columns), len(mean), len(std))
	}
	s := &Scaler{
		columns: append([]string(nil), columns...),
		mean:    append([]float64(nil), mean...),
		std:     append([]float64(nil), std...),
	}
	for i, v := range s.std {
		if v == 0 {
			s.std[i] = 1
		}
	}
	return s, nil
}

// FitScaler computes per-column means and population stddevs over the given
// matrix. The population (n) estimator is deliberate: the sample estimator
// used by the statistical features would shift every standardized value the
// fitted models see.
func FitScaler(columns []string, rows [][]float64) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("scaler: empty fit matrix")
	}
	width := len(columns)
	for i, row := range rows {
		if len(row) != width {
			return nil, &FeatureShapeMismatchError{Want: width, Got: len(row), Row: i}
		}
	}
	mean := make([]float64, width)
	for _, row := range rows {
		for c, v := range row {
			mean[c] += v
		}
	}
	for c := range mean {
		mean[c] /= float64(len(rows))
	}
	std := make([]float64, width)
	for _, row := range rows {
		for c, v := range row {
			d := v - mean[c]
			std[c] += d * d
		}
	}
	for c := range std {
		std[c] = math.Sqrt(std[c] / float64(len(rows)))
	}
	return NewScaler(columns, mean, std)
}

// Columns returns the frozen column layout the scaler was fitted against.
func (s *Scaler) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Width returns the expected row width.
func (s *Scaler) Width() int { return len(s.columns) }

// Transform standardizes every row in place-compatible fashion, returning a
// fresh matrix. Any row whose width differs from the fitted layout fails the
// whole batch with a FeatureShapeMismatchError; silently truncating or
// padding would feed the models columns fitted for other positions.
func (s *Scaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(s.columns) {
			return nil, &FeatureShapeMismatchError{Want: len(s.columns), Got: len(row), Row: i}
		}
		scaled := make([]float64, len(row))
		for c, v := range row {
			scaled[c] = (v - s.mean[c]) / s.std[c]
		}
		out[i] = scaled
	}
	return out, nil
}

// Params exposes the frozen parameters for artifact encoding.
func (s *Scaler) Params() (mean, std []float64) {
	return append([]float64(nil), s.mean...), append([]float64(nil), s.std...)
}
