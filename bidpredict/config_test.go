package bidpredict

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ModelVersion != "v1" || cfg.BidType != BidTypeConstruction {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.BatchWorkers <= 0 {
		t.Fatalf("batch workers = %d", cfg.BatchWorkers)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.json")
	in := Config{
		ArtifactDir:  "/models",
		ModelVersion: "v3",
		BidType:      BidTypeService,
		AvgDiffRatio: 0.012,
		LexiconPath:  "/lex.txt",
		StorePath:    "/data/decisions.db",
		BatchWorkers: 8,
	}
	if err := SaveConfig(path, in); err != nil {
		t.Fatal(err)
	}
	out, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("round trip changed config: %+v vs %+v", out, in)
	}
}

func TestApplyDefaultsFixesBadValues(t *testing.T) {
	cfg := Config{BidType: "lease", AvgDiffRatio: -1, BatchWorkers: -3}
	cfg.ApplyDefaults()
	if cfg.BidType != BidTypeConstruction {
		t.Fatalf("bid type = %s", cfg.BidType)
	}
	if cfg.AvgDiffRatio != 0 || cfg.BatchWorkers <= 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
}
