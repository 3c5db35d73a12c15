package bidpredict

import (
	"errors"
	"math"
	"testing"
)

func TestFitScalerStandardizes(t *testing.T) {
	cols := []string{"a", "b"}
	rows := [][]float64{{1, 10}, {3, 20}, {5, 30}}
	s, err := FitScaler(cols, rows)
	if err != nil {
		t.Fatal(err)
	}
	scaled, err := s.Transform(rows)
	if err != nil {
		t.Fatal(err)
	}
	// Per column: mean 0, population stddev 1.
	for c := 0; c < 2; c++ {
		var sum, sq float64
		for _, row := range scaled {
			sum += row[c]
			sq += row[c] * row[c]
		}
		mean := sum / 3
		std := math.Sqrt(sq/3 - mean*mean)
		if !almostEqual(mean, 0) || !almostEqual(std, 1) {
			t.Fatalf("column %d: mean=%v std=%v", c, mean, std)
		}
	}
}

func TestFitScalerPopulationStd(t *testing.T) {
	// {1,2,3,4}: population stddev sqrt(5/4), not the sample sqrt(5/3).
	s, err := FitScaler([]string{"a"}, [][]float64{{1}, {2}, {3}, {4}})
	if err != nil {
		t.Fatal(err)
	}
	_, std := s.Params()
	if !almostEqual(std[0], math.Sqrt(5.0/4.0)) {
		t.Fatalf("std = %v, want population estimator %v", std[0], math.Sqrt(5.0/4.0))
	}
}

func TestScalerZeroVariance(t *testing.T) {
	s, err := FitScaler([]string{"a"}, [][]float64{{7}, {7}, {7}})
	if err != nil {
		t.Fatal(err)
	}
	scaled, err := s.Transform([][]float64{{7}, {9}})
	if err != nil {
		t.Fatal(err)
	}
	// Divisor coerced to 1: centered values pass through.
	if scaled[0][0] != 0 || scaled[1][0] != 2 {
		t.Fatalf("scaled = %v, want [[0] [2]]", scaled)
	}
}

func TestScalerShapeMismatch(t *testing.T) {
	s, err := NewScaler([]string{"a", "b"}, []float64{0, 0}, []float64{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Transform([][]float64{{1, 2}, {1, 2, 3}})
	if err == nil {
		t.Fatal("width mismatch accepted")
	}
	if !IsFeatureShapeMismatch(err) {
		t.Fatalf("error type = %T, want FeatureShapeMismatchError", err)
	}
	var mismatch *FeatureShapeMismatchError
	if !errors.As(err, &mismatch) || mismatch.Row != 1 || mismatch.Got != 3 || mismatch.Want != 2 {
		t.Fatalf("mismatch detail = %+v", mismatch)
	}
}

func TestNewScalerValidates(t *testing.T) {
	if _, err := NewScaler(nil, nil, nil); err == nil {
		t.Fatal("empty layout accepted")
	}
	if _, err := NewScaler([]string{"a"}, []float64{0, 0}, []float64{1}); err == nil {
		t.Fatal("length mismatch accepted")
	}
}
