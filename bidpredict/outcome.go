package bidpredict

import "math"

// OutcomeProcessor turns raw rate predictions into priced amounts, sampled
// price points, and award-band classifications. AvgDiffRatio is the
// historical average deviation used to spread the price samples around the
// predicted rate.
type OutcomeProcessor struct {
	AvgDiffRatio float64
}

// priceSampleCoefficients spreads the five samples symmetrically around the
// predicted rate, highest first.
var priceSampleCoefficients = [5]float64{1.0, 0.5, 0, -0.5, -1.0}

// AValueThreshold marks predictions whose bidder rate is high enough that
// the A-value adjustment applies to the published amount.
const AValueThreshold = 0.8

// PriceSamples returns five candidate bid amounts around one predicted rate:
// round(base * (rate + avgDiff * coef)) for coefficients 1.0 down to -1.0.
// Process applies it to both rate bases.
func (p OutcomeProcessor) PriceSamples(baseAmount int64, rate float64) []int64 {
	out := make([]int64, len(priceSampleCoefficients))
	for i, coef := range priceSampleCoefficients {
		out[i] = roundAmount(float64(baseAmount) * (rate + p.AvgDiffRatio*coef))
	}
	return out
}

// Classify places a predicted amount in its award band against the known
// minimum and actual award amounts. Records with unknown outcomes carry
// zeros, which classify as OTHER (or never BELOW_MINIMUM for a zero
// minimum) rather than erroring.
func (p OutcomeProcessor) Classify(amount, minimumBid, actualAward int64) Classification {
	switch {
	case amount < minimumBid:
		return OutcomeBelowMinimum
	case amount < actualAward:
		return OutcomeAwarded
	default:
		return OutcomeOther
	}
}

// Process derives the full priced outcome for one record from its prediction
// triple. The sample generator runs once per rate basis, bidder rate first,
// so the decision carries ten price samples. BaseAmount and LowerBoundRatio
// must be positive; a zero in either makes every derived amount meaningless,
// so the record is rejected outright.
func (p OutcomeProcessor) Process(rec BidRecord, pred PredictionTriple) (Decision, error) {
	if rec.BaseAmount <= 0 {
		return Decision{}, &InvalidBidRecordError{Field: "baseAmount", Reason: "must be positive"}
	}
	if rec.LowerBoundRatio <= 0 {
		return Decision{}, &InvalidBidRecordError{Field: "lowerBoundRatio", Reason: "must be positive"}
	}

	base := float64(rec.BaseAmount)
	bidderAmount := roundAmount(base * pred.BidderRate)

	// The plan value backs the reference rate out of the lower bound, and
	// the reference amount multiplies the bound back in. The round trip is
	// algebraically a no-op but carries floating rounding, so it stays in
	// floating point end to end; only the published fields are rounded.
	planValue := base * (pred.ReferenceRate / rec.LowerBoundRatio)
	planAmount := roundAmount(planValue)
	referenceAmount := roundAmount(planValue * rec.LowerBoundRatio)

	samples := p.PriceSamples(rec.BaseAmount, pred.BidderRate)
	samples = append(samples, p.PriceSamples(rec.BaseAmount, pred.ReferenceRate)...)

	d := Decision{
		BidNo:  rec.BidNo,
		Round:  rec.Round,
		Type:   rec.Type,
		Rates:  pred,
		AValue: pred.BidderRate >= AValueThreshold,

		BidderPredictedAmount:    bidderAmount,
		PlanAmountEstimate:       planAmount,
		ReferencePredictedAmount: referenceAmount,
		PriceSamples:             samples,

		BidderOutcome:    p.Classify(bidderAmount, rec.MinimumBidAmount, rec.ActualAwardAmount),
		ReferenceOutcome: p.Classify(referenceAmount, rec.MinimumBidAmount, rec.ActualAwardAmount),
	}
	return d, nil
}

// roundAmount rounds half away from zero to a whole currency unit.
func roundAmount(v float64) int64 {
	return int64(math.Round(v))
}
