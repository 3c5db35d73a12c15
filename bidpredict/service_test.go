package bidpredict

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"yashubustudio/bidpredict/tokenize"
)

func writeTestVersion(t *testing.T, dir, version string, bidderBias float64) {
	t.Helper()
	columns := BaseColumns(BidTypeConstruction)
	width := len(columns)

	vocab := map[string]int{"bridge": 0, "road": 1}
	v, err := NewVectorizer(vocab, []float64{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{FieldInstitution, FieldRegion, FieldKeyword} {
		if err := SaveVectorizer(dir, version, "vectorizer_"+field+".json", v); err != nil {
			t.Fatal(err)
		}
	}

	mean := make([]float64, width)
	std := make([]float64, width)
	for i := range std {
		std[i] = 1
	}
	scaler, err := NewScaler(columns, mean, std)
	if err != nil {
		t.Fatal(err)
	}
	if err := SaveScaler(dir, version, scaler); err != nil {
		t.Fatal(err)
	}

	constant := func(bias float64) MLPParams {
		weights := [][]float64{make([]float64, width)}
		return MLPParams{
			InputWidth: width,
			Layers:     []MLPLayerParam{{Weights: weights, Bias: []float64{bias}}},
		}
	}
	models := map[string]float64{
		TargetBidderRate:    bidderBias,
		TargetReferenceRate: 0.95,
		TargetBidderCount:   4,
	}
	refs := make(map[string]ModelRef, len(models))
	for target, bias := range models {
		file := "model_" + target + ".json"
		if err := SaveMLP(dir, version, file, constant(bias)); err != nil {
			t.Fatal(err)
		}
		refs[target] = ModelRef{Kind: ModelKindMLP, File: file}
	}

	if err := SaveManifest(dir, Manifest{
		Version:      version,
		BidType:      BidTypeConstruction,
		AvgDiffRatio: 0.01,
		Columns:      columns,
		Vectorizers: map[string]string{
			FieldInstitution: "vectorizer_" + FieldInstitution + ".json",
			FieldRegion:      "vectorizer_" + FieldRegion + ".json",
			FieldKeyword:     "vectorizer_" + FieldKeyword + ".json",
		},
		Models: refs,
	}); err != nil {
		t.Fatal(err)
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	writeTestVersion(t, dir, "v1", 0.87)
	writeTestVersion(t, dir, "v2", 0.9)

	tk := tokenize.NewLexiconTokenizer(map[string]string{
		"road":   tokenize.TagForeign,
		"bridge": tokenize.TagForeign,
	})
	s, err := NewService(Config{
		ArtifactDir:  dir,
		ModelVersion: "v1",
		BidType:      BidTypeConstruction,
	}, tk, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord() BidRecord {
	return BidRecord{
		BidNo:             "20240115-001",
		Round:             1,
		Type:              BidTypeConstruction,
		BaseAmount:        100000000,
		LowerBoundRatio:   0.85,
		ParticipantCount:  5,
		InstitutionText:   "Road Bridge",
		RegionText:        "road",
		KeywordText:       "bridge",
		MinimumBidAmount:  80000000,
		ActualAwardAmount: 90000000,
	}
}

func TestServicePredict(t *testing.T) {
	s := newTestService(t)
	d, err := s.Predict(context.Background(), testRecord())
	if err != nil {
		t.Fatal(err)
	}
	if d.ModelVersion != "v1" {
		t.Fatalf("model version = %s", d.ModelVersion)
	}
	if !almostEqual(d.Rates.BidderRate, 0.87) || !almostEqual(d.Rates.ReferenceRate, 0.95) {
		t.Fatalf("rates = %+v", d.Rates)
	}
	if d.BidderPredictedAmount != 87000000 {
		t.Fatalf("bidder amount = %d", d.BidderPredictedAmount)
	}
	if d.BidderOutcome != OutcomeAwarded {
		t.Fatalf("bidder outcome = %s", d.BidderOutcome)
	}
	// "road" alone scores index 1 after normalization; "bridge" scores 0.
	if !almostEqual(d.Scores.Region, 1) || !almostEqual(d.Scores.Keyword, 0) {
		t.Fatalf("scores = %+v", d.Scores)
	}
	if len(d.PriceSamples) != 10 {
		t.Fatalf("price samples = %v", d.PriceSamples)
	}
}

func TestServicePredictDeterministic(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	first, err := s.Predict(ctx, testRecord())
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Predict(ctx, testRecord())
	if err != nil {
		t.Fatal(err)
	}
	if first.Rates != second.Rates ||
		first.Scores != second.Scores ||
		first.BidderPredictedAmount != second.BidderPredictedAmount {
		t.Fatalf("repeated prediction differs: %+v vs %+v", first, second)
	}
}

func TestServicePredictBatchKeepsOrder(t *testing.T) {
	s := newTestService(t)
	recs := make([]BidRecord, 300)
	for i := range recs {
		recs[i] = testRecord()
		recs[i].Round = i + 1
	}
	out, err := s.PredictBatch(context.Background(), recs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(recs) {
		t.Fatalf("got %d decisions", len(out))
	}
	for i, d := range out {
		if d.Round != i+1 {
			t.Fatalf("decision %d has round %d", i, d.Round)
		}
	}
}

func TestServiceRejectsInvalidRecords(t *testing.T) {
	s := newTestService(t)
	cases := []struct {
		name   string
		mutate func(*BidRecord)
	}{
		{"zero base", func(r *BidRecord) { r.BaseAmount = 0 }},
		{"zero ratio", func(r *BidRecord) { r.LowerBoundRatio = 0 }},
		{"missing type", func(r *BidRecord) { r.Type = "" }},
		{"wrong type", func(r *BidRecord) { r.Type = BidTypeGoods }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := testRecord()
			tc.mutate(&rec)
			_, err := s.Predict(context.Background(), rec)
			if err == nil {
				t.Fatal("invalid record accepted")
			}
			if !IsInvalidBidRecord(err) {
				t.Fatalf("error type = %T: %v", err, err)
			}
		})
	}
}

func TestServiceReload(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	old, err := s.Reload("v2")
	if err != nil {
		t.Fatal(err)
	}
	if old.Version() != "v1" {
		t.Fatalf("replaced snapshot = %s", old.Version())
	}
	d, err := s.Predict(ctx, testRecord())
	if err != nil {
		t.Fatal(err)
	}
	if d.ModelVersion != "v2" {
		t.Fatalf("model version after reload = %s", d.ModelVersion)
	}
	if !almostEqual(d.Rates.BidderRate, 0.9) {
		t.Fatalf("bidder rate after reload = %v", d.Rates.BidderRate)
	}
	if err := old.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestServiceRejectsBidTypeMismatch(t *testing.T) {
	dir := t.TempDir()
	writeTestVersion(t, dir, "v1", 0.87)
	tk := tokenize.NewLexiconTokenizer(map[string]string{"road": tokenize.TagForeign})
	_, err := NewService(Config{
		ArtifactDir:  dir,
		ModelVersion: "v1",
		BidType:      BidTypeGoods,
	}, tk, zap.NewNop())
	if err == nil {
		t.Fatal("bid type mismatch accepted")
	}
}
