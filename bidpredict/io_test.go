package bidpredict

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestReadBidRecords(t *testing.T) {
	csvData := `bid_no,round,bid_type,base_amount,lower_bound_ratio,participant_count,license_restriction_code,institution,region,keyword,minimum_bid_amount,actual_award_amount
20240115-001,2,construction,"100,000,000",0.85,7,1234,City Hall,Seoul,road repair,80000000,90000000
20240116-001,,,"50,000,000",87.25,,,Provincial Office,Busan,bridge,,
`
	recs, err := ReadBidRecords(strings.NewReader(csvData), BidTypeGoods)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}

	first := recs[0]
	if first.BidNo != "20240115-001" || first.Round != 2 {
		t.Fatalf("first identity = %s/%d", first.BidNo, first.Round)
	}
	if first.Type != BidTypeConstruction {
		t.Fatalf("first type = %s", first.Type)
	}
	if first.BaseAmount != 100000000 {
		t.Fatalf("base amount = %d", first.BaseAmount)
	}
	if first.ParticipantCount != 7 || first.LicenseRestrictionCode != "1234" {
		t.Fatalf("first = %+v", first)
	}

	second := recs[1]
	if second.Type != BidTypeGoods {
		t.Fatalf("second type = %s, want the default", second.Type)
	}
	if second.Round != 1 {
		t.Fatalf("missing round = %d, want default 1", second.Round)
	}
	if second.ParticipantCount != defaultParticipantCount {
		t.Fatalf("missing participant count = %d, want %d", second.ParticipantCount, defaultParticipantCount)
	}
	// Percentage ratios are folded back into fractions.
	if !almostEqual(second.LowerBoundRatio, 0.8725) {
		t.Fatalf("ratio = %v, want 0.8725", second.LowerBoundRatio)
	}
	// A missing license code stays empty; the models trained with missing
	// codes mapped to zero, so inventing a value here would feed them an
	// input they never saw.
	if second.LicenseRestrictionCode != "" {
		t.Fatalf("missing license code = %q, want empty", second.LicenseRestrictionCode)
	}
	if got := licenseCodeValue(second.LicenseRestrictionCode); got != 0 {
		t.Fatalf("missing license code scores %v, want 0", got)
	}
}

func TestReadBidRecordsErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"missing required column", "bid_no,base_amount\nx,100\n"},
		{"bad amount", "base_amount,lower_bound_ratio\nabc,0.8\n"},
		{"unknown bid type", "base_amount,lower_bound_ratio,bid_type\n100,0.8,lease\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadBidRecords(strings.NewReader(tc.data), BidTypeGoods); err == nil {
				t.Fatal("bad input accepted")
			}
		})
	}
}

func TestWriteDecisionsCSV(t *testing.T) {
	decisions := []Decision{{
		BidNo:                    "20240115-001",
		Round:                    1,
		Type:                     BidTypeConstruction,
		Rates:                    PredictionTriple{BidderRate: 0.87, ReferenceRate: 0.95, BidderCountEstimate: 4},
		BidderPredictedAmount:    87000000,
		PlanAmountEstimate:       111764706,
		ReferencePredictedAmount: 95000000,
		PriceSamples: []int64{
			88000000, 87500000, 87000000, 86500000, 86000000,
			96000000, 95500000, 95000000, 94500000, 94000000,
		},
		AValue:                   true,
		BidderOutcome:            OutcomeAwarded,
		ReferenceOutcome:         OutcomeOther,
		ModelVersion:             "v1",
		PredictedAt:              time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
	}}
	var buf bytes.Buffer
	if err := WriteDecisionsCSV(&buf, decisions); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	row := lines[1]
	for _, want := range []string{"20240115-001", "0.87", "87000000", "88000000|87500000|87000000|86500000|86000000|96000000|95500000|95000000|94500000|94000000", "AWARDED", "v1"} {
		if !strings.Contains(row, want) {
			t.Fatalf("row %q missing %q", row, want)
		}
	}
}
