package bidpredict

import (
	"math"
	"testing"
)

func TestKMeansLabels(t *testing.T) {
	rows := [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1},
	}
	opts := DefaultClusterOptions()
	opts.K = 2
	labels, err := KMeansLabels(rows, opts)
	if err != nil {
		t.Fatal(err)
	}
	if labels[0] != labels[1] || labels[1] != labels[2] {
		t.Fatalf("first cluster split: %v", labels)
	}
	if labels[3] != labels[4] || labels[4] != labels[5] {
		t.Fatalf("second cluster split: %v", labels)
	}
	if labels[0] == labels[3] {
		t.Fatalf("clusters merged: %v", labels)
	}

	// Seeded runs reproduce exactly.
	again, err := KMeansLabels(rows, opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := range labels {
		if labels[i] != again[i] {
			t.Fatalf("seeded run diverged: %v vs %v", labels, again)
		}
	}
}

func TestKMeansClusterDistances(t *testing.T) {
	rows := [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1},
	}
	opts := DefaultClusterOptions()
	opts.K = 2
	result, err := KMeansCluster(rows, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Centroids) != 2 {
		t.Fatalf("got %d centroids", len(result.Centroids))
	}
	distances := result.Distances(rows)
	if len(distances) != len(rows) || len(distances[0]) != 2 {
		t.Fatalf("distance shape = %dx%d", len(distances), len(distances[0]))
	}
	for i, row := range rows {
		own := distances[i][result.Labels[i]]
		other := distances[i][1-result.Labels[i]]
		if own >= other {
			t.Fatalf("row %d is closer to the foreign centroid: %v vs %v", i, own, other)
		}
		want := math.Sqrt(squaredDistance(row, result.Centroids[result.Labels[i]]))
		if !almostEqual(own, want) {
			t.Fatalf("row %d distance = %v, want %v", i, own, want)
		}
	}
}

func TestAppendClusterFeatures(t *testing.T) {
	rows := [][]float64{
		{0, 0}, {0.1, 0},
		{10, 10}, {10.1, 10},
	}
	opts := DefaultClusterOptions()
	opts.K = 2
	f := NewFrame(len(rows))
	result, err := AppendClusterFeatures(f, rows, opts)
	if err != nil {
		t.Fatal(err)
	}
	labels, ok := f.Numeric("cluster")
	if !ok {
		t.Fatal("cluster label column missing")
	}
	for i, l := range result.Labels {
		if labels[i] != float64(l) {
			t.Fatalf("label column[%d] = %v, want %d", i, labels[i], l)
		}
	}
	distances := result.Distances(rows)
	for c := 0; c < opts.K; c++ {
		name := "cluster_" + string(rune('0'+c)) + "_distance"
		col, ok := f.Numeric(name)
		if !ok {
			t.Fatalf("column %s missing", name)
		}
		for i := range rows {
			if !almostEqual(col[i], distances[i][c]) {
				t.Fatalf("%s[%d] = %v, want %v", name, i, col[i], distances[i][c])
			}
		}
	}
}

func TestKMeansLabelsRejectsBadK(t *testing.T) {
	rows := [][]float64{{1}, {2}}
	opts := DefaultClusterOptions()
	if _, err := KMeansLabels(rows, opts); err == nil {
		t.Fatal("k larger than row count accepted")
	}
}

func TestExpandPolynomial(t *testing.T) {
	f := NewFrame(1)
	_ = f.SetNumeric(ColBaseAmount, []float64{2})
	_ = f.SetNumeric(ColLowerBoundRatio, []float64{3})
	_ = f.SetNumeric(ColParticipantCount, []float64{4})
	if err := ExpandPolynomial(f); err != nil {
		t.Fatal(err)
	}
	checks := map[string]float64{
		"poly_base_amount_base_amount":             4,
		"poly_base_amount_lower_bound_ratio":       6,
		"poly_base_amount_participant_count":       8,
		"poly_lower_bound_ratio_lower_bound_ratio": 9,
		"poly_lower_bound_ratio_participant_count": 12,
		"poly_participant_count_participant_count": 16,
	}
	for name, want := range checks {
		col, ok := f.Numeric(name)
		if !ok {
			t.Fatalf("column %s missing", name)
		}
		if col[0] != want {
			t.Fatalf("%s = %v, want %v", name, col[0], want)
		}
	}
}

func TestExpandPolynomialRequiresCoreColumns(t *testing.T) {
	f := NewFrame(1)
	_ = f.SetNumeric(ColBaseAmount, []float64{2})
	if err := ExpandPolynomial(f); err == nil {
		t.Fatal("missing core columns accepted")
	}
}

func TestSelectKBestF(t *testing.T) {
	f := NewFrame(5)
	target := []float64{1, 2, 3, 4, 5}
	_ = f.SetNumeric("linear", []float64{2, 4, 6, 8, 10})  // perfectly correlated
	_ = f.SetNumeric("noisy", []float64{5, 1, 4, 2, 3})    // weak
	_ = f.SetNumeric("constant", []float64{7, 7, 7, 7, 7}) // zero variance
	selected, err := SelectKBestF(f, []string{"noisy", "constant", "linear"}, target, 2)
	if err != nil {
		t.Fatal(err)
	}
	if selected[0] != "linear" {
		t.Fatalf("top feature = %s, want linear", selected[0])
	}
	if selected[1] == "constant" {
		t.Fatal("zero-variance column outranked a correlated one")
	}
}

func TestFStatistic(t *testing.T) {
	// r=1 gives an infinite F value.
	if f := fStatistic([]float64{1, 2, 3}, []float64{2, 4, 6}); !math.IsInf(f, 1) {
		t.Fatalf("perfect correlation F = %v", f)
	}
	if f := fStatistic([]float64{1, 1, 1}, []float64{1, 2, 3}); f != 0 {
		t.Fatalf("zero-variance F = %v, want 0", f)
	}
}

func TestPCAProject(t *testing.T) {
	// Points on the y=x line: one component explains all variance.
	rows := [][]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}}
	out, err := PCAProject(rows, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 4 || len(out[0]) != 1 {
		t.Fatalf("projected shape = %dx%d, want 4x1", len(out), len(out[0]))
	}
	// Projection onto the leading axis preserves the spacing sqrt(2).
	gap := math.Abs(out[1][0] - out[0][0])
	if !almostEqual(gap, math.Sqrt2) {
		t.Fatalf("projected gap = %v, want sqrt(2)", gap)
	}
}
