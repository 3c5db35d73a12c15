package bidpredict

import "time"

// BidType discriminates the procurement variants. Construction bids carry two
// extra monetary columns (indirect cost, net construction cost); goods and
// service bids use the base column set only. Each trained model version is
// frozen against exactly one of these column layouts.
type BidType string

const (
	// BidTypeConstruction covers construction-work procurements.
	BidTypeConstruction BidType = "construction"
	// BidTypeGoods covers goods-purchase procurements.
	BidTypeGoods BidType = "goods"
	// BidTypeService covers service procurements.
	BidTypeService BidType = "service"
)

// BidRecord is the unit of work for one inference request.
type BidRecord struct {
	BidNo string  `json:"bidNo,omitempty"`
	Round int     `json:"round,omitempty"`
	Type  BidType `json:"type"`

	BaseAmount       int64   `json:"baseAmount"`
	LowerBoundRatio  float64 `json:"lowerBoundRatio"`
	ParticipantCount int     `json:"participantCount"`

	// Construction-only fields; zero for goods/service bids.
	IndirectCost        int64 `json:"indirectCost,omitempty"`
	NetConstructionCost int64 `json:"netConstructionCost,omitempty"`

	LicenseRestrictionCode string `json:"licenseRestrictionCode,omitempty"`

	InstitutionText string `json:"institutionText,omitempty"`
	RegionText      string `json:"regionText,omitempty"`
	KeywordText     string `json:"keywordText,omitempty"`

	// Evaluation fields, present only for historical bids. Zero values feed
	// the classification formula unchanged.
	MinimumBidAmount  int64 `json:"minimumBidAmount,omitempty"`
	ActualAwardAmount int64 `json:"actualAwardAmount,omitempty"`
}

// TextScores holds the three relevance scores derived from the free-text
// fields of a record.
type TextScores struct {
	Institution float64 `json:"institution"`
	Region      float64 `json:"region"`
	Keyword     float64 `json:"keyword"`
}

// PredictionTriple is the raw ensemble output for one record.
type PredictionTriple struct {
	BidderRate          float64 `json:"bidderRate"`
	ReferenceRate       float64 `json:"referenceRate"`
	BidderCountEstimate float64 `json:"bidderCountEstimate"`
}

// Classification is the award-band outcome for one predicted amount.
type Classification string

const (
	// OutcomeBelowMinimum marks a predicted amount under the regulatory floor.
	OutcomeBelowMinimum Classification = "BELOW_MINIMUM"
	// OutcomeAwarded marks a predicted amount inside the award band.
	OutcomeAwarded Classification = "AWARDED"
	// OutcomeOther marks a predicted amount at or above the actual award.
	OutcomeOther Classification = "OTHER"
)

// Decision is the externally visible result for one bid: predictions, priced
// samples, and award-band classifications. It is never mutated after Predict
// returns it.
type Decision struct {
	BidNo string  `json:"bidNo,omitempty"`
	Round int     `json:"round,omitempty"`
	Type  BidType `json:"type"`

	Scores TextScores       `json:"scores"`
	Rates  PredictionTriple `json:"rates"`

	// BidderPredictedAmount is bidderRate x baseAmount, rounded.
	BidderPredictedAmount int64 `json:"bidderPredictedAmount"`
	// PlanAmountEstimate is referenceRate x baseAmount / lowerBoundRatio,
	// rounded.
	PlanAmountEstimate int64 `json:"planAmountEstimate"`
	// ReferencePredictedAmount is the unrounded plan value multiplied back
	// by lowerBoundRatio, then rounded. The round-trip through the ratio is
	// deliberate and carried in floating point: algebraically it cancels, but
	// the published number keeps the residual rounding.
	ReferencePredictedAmount int64 `json:"referencePredictedAmount"`

	// PriceSamples holds ten candidate amounts: five around the bidder rate
	// followed by five around the reference rate, each band ordered from
	// most to least aggressive.
	PriceSamples []int64 `json:"priceSamples"`

	// AValue is set when the bidder rate reaches 0.8.
	AValue bool `json:"aValue"`

	BidderOutcome    Classification `json:"bidderOutcome"`
	ReferenceOutcome Classification `json:"referenceOutcome"`

	ModelVersion string    `json:"modelVersion"`
	PredictedAt  time.Time `json:"predictedAt"`
}

// BaseColumns returns the frozen inference column order for a bid type. The
// scaler and models for a given version are fitted against exactly this
// layout; any divergence is a shape mismatch, not a recoverable condition.
func BaseColumns(t BidType) []string {
	switch t {
	case BidTypeConstruction:
		return []string{
			ColBaseAmount, ColLowerBoundRatio, ColParticipantCount,
			ColIndirectCost, ColNetConstructionCost,
			ColLicenseCode, ColInstitutionScore, ColRegionScore, ColKeywordScore,
		}
	default:
		return []string{
			ColBaseAmount, ColLowerBoundRatio, ColParticipantCount,
			ColLicenseCode, ColInstitutionScore, ColRegionScore, ColKeywordScore,
		}
	}
}

// Canonical feature column names shared by the engineer, scaler artifacts and
// CSV ingest.
const (
	ColBaseAmount          = "base_amount"
	ColLowerBoundRatio     = "lower_bound_ratio"
	ColParticipantCount    = "participant_count"
	ColIndirectCost        = "indirect_cost"
	ColNetConstructionCost = "net_construction_cost"
	ColLicenseCode         = "license_restriction_code"
	ColInstitutionScore    = "institution_score"
	ColRegionScore         = "region_score"
	ColKeywordScore        = "keyword_score"

	ColInstitutionText = "institution_text"
	ColRegionText      = "region_text"
	ColKeywordText     = "keyword_text"
	ColBidNo           = "bid_no"
)
