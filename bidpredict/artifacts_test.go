package bidpredict

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeTestVersion(t, dir, "v7", 0.87)

	snap, err := LoadSnapshot(dir, "v7", "")
	if err != nil {
		t.Fatal(err)
	}
	defer snap.Close()

	if snap.Version() != "v7" {
		t.Fatalf("version = %s", snap.Version())
	}
	if snap.Manifest.BidType != BidTypeConstruction {
		t.Fatalf("bid type = %s", snap.Manifest.BidType)
	}
	if got := len(snap.Vectorizers); got != 3 {
		t.Fatalf("vectorizers = %d", got)
	}
	if snap.Scaler.Width() != len(BaseColumns(BidTypeConstruction)) {
		t.Fatalf("scaler width = %d", snap.Scaler.Width())
	}

	rows := [][]float64{make([]float64, snap.Scaler.Width())}
	triples, err := snap.Ensemble.Predict(rows)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(triples[0].BidderRate, 0.87) {
		t.Fatalf("bidder rate = %v", triples[0].BidderRate)
	}
}

func TestLoadSnapshotMissingModel(t *testing.T) {
	dir := t.TempDir()
	writeTestVersion(t, dir, "v1", 0.87)

	// Strip one model from the manifest and rewrite it.
	var m Manifest
	if err := readJSONFile(filepath.Join(dir, "v1", manifestFile), &m); err != nil {
		t.Fatal(err)
	}
	delete(m.Models, TargetBidderCount)
	if err := SaveManifest(dir, m); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSnapshot(dir, "v1", ""); err == nil {
		t.Fatal("incomplete manifest accepted")
	}
}

func TestWriteJSONAtomicLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "out.json")
	if err := writeJSONAtomic(path, map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}

func TestSaveManifestRequiresVersion(t *testing.T) {
	if err := SaveManifest(t.TempDir(), Manifest{}); err == nil {
		t.Fatal("empty version accepted")
	}
}
