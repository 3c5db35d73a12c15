package bidpredict

import (
	"errors"
	"testing"
)

func TestFrameNoOverwrite(t *testing.T) {
	f := NewFrame(2)
	if err := f.SetNumeric("a", []float64{1, 2}); err != nil {
		t.Fatal(err)
	}
	// A second append under the same name is silently ignored so that
	// re-running a sub-transform cannot alter earlier output.
	if err := f.SetNumeric("a", []float64{9, 9}); err != nil {
		t.Fatal(err)
	}
	col, _ := f.Numeric("a")
	if col[0] != 1 || col[1] != 2 {
		t.Fatalf("column overwritten: %v", col)
	}
	if got := len(f.Columns()); got != 1 {
		t.Fatalf("got %d columns", got)
	}
}

func TestMatrixMissingColumnIsShapeMismatch(t *testing.T) {
	f := NewFrame(1)
	_ = f.SetNumeric("a", []float64{1})
	_ = f.SetNumeric("b", []float64{2})

	_, err := f.Matrix([]string{"a", "b", "c"})
	if err == nil {
		t.Fatal("missing frozen column accepted")
	}
	if !IsFeatureShapeMismatch(err) {
		t.Fatalf("error type = %T, want shape mismatch", err)
	}
	var mismatch *FeatureShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatal(err)
	}
	if mismatch.Column != "c" || mismatch.Want != 3 || mismatch.Got != 2 {
		t.Fatalf("mismatch = %+v", mismatch)
	}
}
