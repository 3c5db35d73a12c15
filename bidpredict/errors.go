package bidpredict

import (
	"errors"
	"fmt"
)

// InvalidBidRecordError reports a record that cannot be priced: a required
// monetary field is missing or zero where a ratio-based amount needs it.
// These are caller errors; retrying the same input will not help.
type InvalidBidRecordError struct {
	Field  string
	Reason string
}

func (e *InvalidBidRecordError) Error() string {
	return fmt.Sprintf("invalid bid record: %s %s", e.Field, e.Reason)
}

// FeatureShapeMismatchError reports an engineered layout that disagrees with
// the fitted artifacts, either a row of the wrong width or a frozen column
// absent from the frame. There is no partial-match tolerance: feature-set
// drift means the serving artifacts no longer describe the model.
type FeatureShapeMismatchError struct {
	Want int
	Got  int
	Row  int
	// Column names the missing frozen column, empty for width mismatches.
	Column string
}

func (e *FeatureShapeMismatchError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("feature shape mismatch: frozen column %s missing, %d of %d present", e.Column, e.Got, e.Want)
	}
	return fmt.Sprintf("feature shape mismatch: row %d has %d columns, fitted layout has %d", e.Row, e.Got, e.Want)
}

var (
	errNilRegressor = errors.New("nil regressor")
	errMixedWidths  = errors.New("regressors disagree on input width")
)

// ModelInferenceError reports a failure inside one of the three regressors.
// Target names which model failed so the caller can decide whether a retry
// is worthwhile.
type ModelInferenceError struct {
	Target string
	Width  int
	Err    error
}

func (e *ModelInferenceError) Error() string {
	return fmt.Sprintf("model inference failed for %s (input width %d): %v", e.Target, e.Width, e.Err)
}

func (e *ModelInferenceError) Unwrap() error { return e.Err }

// IsInvalidBidRecord reports whether err is (or wraps) an InvalidBidRecordError.
func IsInvalidBidRecord(err error) bool {
	var target *InvalidBidRecordError
	return errors.As(err, &target)
}

// IsFeatureShapeMismatch reports whether err is (or wraps) a FeatureShapeMismatchError.
func IsFeatureShapeMismatch(err error) bool {
	var target *FeatureShapeMismatchError
	return errors.As(err, &target)
}

// IsModelInferenceError reports whether err is (or wraps) a ModelInferenceError.
func IsModelInferenceError(err error) bool {
	var target *ModelInferenceError
	return errors.As(err, &target)
}
