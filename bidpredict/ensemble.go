package bidpredict

// The three prediction targets. Every fitted snapshot carries one regressor
// per target; their names appear in artifacts, logs and inference errors.
const (
	TargetBidderRate    = "bidder_rate"
	TargetReferenceRate = "reference_rate"
	TargetBidderCount   = "bidder_count"
)

// Ensemble groups the three frozen regressors of one model version. It is
// immutable after construction and shared across requests.
type Ensemble struct {
	bidderRate    Regressor
	referenceRate Regressor
	bidderCount   Regressor
}

// NewEnsemble wires the three regressors. All must expect the same input
// width; a mixed ensemble could only have been assembled from artifacts of
// different versions.
func NewEnsemble(bidderRate, referenceRate, bidderCount Regressor) (*Ensemble, error) {
	for _, r := range []Regressor{bidderRate, referenceRate, bidderCount} {
		if r == nil {
			return nil, &ModelInferenceError{Target: "ensemble", Err: errNilRegressor}
		}
	}
	w := bidderRate.InputWidth()
	if referenceRate.InputWidth() != w || bidderCount.InputWidth() != w {
		return nil, &ModelInferenceError{
			Target: "ensemble",
			Width:  w,
			Err:    errMixedWidths,
		}
	}
	return &Ensemble{
		bidderRate:    bidderRate,
		referenceRate: referenceRate,
		bidderCount:   bidderCount,
	}, nil
}

// InputWidth returns the shared feature width of the three regressors.
func (e *Ensemble) InputWidth() int { return e.bidderRate.InputWidth() }

// Predict runs all three regressors over the standardized rows and returns
// one triple per row. A failure in any regressor fails the batch, tagged
// with the target that produced it.
func (e *Ensemble) Predict(rows [][]float64) ([]PredictionTriple, error) {
	bidder, err := e.bidderRate.Predict(rows)
	if err != nil {
		return nil, &ModelInferenceError{Target: TargetBidderRate, Width: e.InputWidth(), Err: err}
	}
	reference, err := e.referenceRate.Predict(rows)
	if err != nil {
		return nil, &ModelInferenceError{Target: TargetReferenceRate, Width: e.InputWidth(), Err: err}
	}
	count, err := e.bidderCount.Predict(rows)
	if err != nil {
		return nil, &ModelInferenceError{Target: TargetBidderCount, Width: e.InputWidth(), Err: err}
	}
	out := make([]PredictionTriple, len(rows))
	for i := range rows {
		out[i] = PredictionTriple{
			BidderRate:          bidder[i],
			ReferenceRate:       reference[i],
			BidderCountEstimate: count[i],
		}
	}
	return out, nil
}
