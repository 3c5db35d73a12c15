package bidpredict

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const defaultConfigFile = "config.json"

// Config carries everything the service and CLI need to come up: artifact
// location, active model version, tokenizer resources, and persistence.
type Config struct {
	// ArtifactDir holds one subdirectory per model version.
	ArtifactDir string `json:"artifactDir"`
	// ModelVersion selects the version directory to serve.
	ModelVersion string `json:"modelVersion"`
	// BidType selects the column layout; must match the served version.
	BidType BidType `json:"bidType"`

	// AvgDiffRatio spreads the price samples; overrides the manifest value
	// when positive.
	AvgDiffRatio float64 `json:"avgDiffRatio"`

	// LexiconPath points at the domain lexicon for longest-match
	// tokenization; TokenizerPath at a wordpiece tokenizer.json fallback.
	LexiconPath   string `json:"lexiconPath"`
	TokenizerPath string `json:"tokenizerPath,omitempty"`

	// OrtLibPath locates the onnxruntime shared library for ONNX-backed
	// model versions. Empty keeps the platform default.
	OrtLibPath string `json:"ortLibPath,omitempty"`

	// CacheDir persists text scores between runs; empty disables the disk
	// layer.
	CacheDir string `json:"cacheDir,omitempty"`

	// StorePath is the SQLite decision store; empty disables persistence.
	StorePath string `json:"storePath,omitempty"`

	// BatchWorkers bounds concurrent batches in PredictBatch.
	BatchWorkers int `json:"batchWorkers"`
}

// ApplyDefaults fills unset fields with working defaults.
func (c *Config) ApplyDefaults() {
	if c.ArtifactDir == "" {
		c.ArtifactDir = "./artifacts"
	}
	if c.ModelVersion == "" {
		c.ModelVersion = "v1"
	}
	switch c.BidType {
	case BidTypeConstruction, BidTypeGoods, BidTypeService:
	default:
		c.BidType = BidTypeConstruction
	}
	if c.AvgDiffRatio < 0 {
		c.AvgDiffRatio = 0
	}
	if c.LexiconPath == "" {
		c.LexiconPath = "./config/lexicon.txt"
	}
	if c.BatchWorkers <= 0 {
		c.BatchWorkers = 4
	}
}

// LoadConfig loads configuration from the given path or the default
// config.json. A missing file yields the defaults rather than an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = defaultConfigFile
	}
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return cfg, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return cfg, nil
}

// SaveConfig persists configuration to disk.
func SaveConfig(path string, cfg Config) error {
	if path == "" {
		path = defaultConfigFile
	}
	cfg.ApplyDefaults()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
