package bidpredict

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact file names inside a version directory.
const (
	manifestFile = "manifest.json"
	scalerFile   = "scaler.json"
)

// Model backends an artifact manifest can reference.
const (
	ModelKindMLP  = "mlp"
	ModelKindONNX = "onnx"
)

// ModelRef locates one regressor's artifact inside the version directory.
type ModelRef struct {
	Kind string `json:"kind"`
	File string `json:"file"`
	// ONNX-only graph metadata; ignored for MLP artifacts.
	InputName  string `json:"inputName,omitempty"`
	OutputName string `json:"outputName,omitempty"`
}

// Manifest describes one frozen model version: the bid type it serves, the
// scaled column layout, the text vectorizers, and the three regressors.
type Manifest struct {
	Version      string              `json:"version"`
	BidType      BidType             `json:"bidType"`
	AvgDiffRatio float64             `json:"avgDiffRatio"`
	Columns      []string            `json:"columns"`
	Vectorizers  map[string]string   `json:"vectorizers"`
	Models       map[string]ModelRef `json:"models"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// vectorizerArtifact is the JSON encoding of a fitted vectorizer.
type vectorizerArtifact struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

// scalerArtifact is the JSON encoding of a fitted scaler.
type scalerArtifact struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Std     []float64 `json:"std"`
}

// Snapshot is a fully loaded model version: everything Predict needs, frozen
// and safe for concurrent use. The service swaps whole snapshots atomically.
type Snapshot struct {
	Manifest    Manifest
	Vectorizers map[string]*Vectorizer
	Scaler      *Scaler
	Ensemble    *Ensemble
}

// Version returns the snapshot's model version string.
func (s *Snapshot) Version() string { return s.Manifest.Version }

// LoadSnapshot reads a version directory into a ready-to-serve snapshot.
// sharedLibPath configures the ONNX runtime when any model artifact needs
// it; it is unused for pure-MLP versions.
func LoadSnapshot(dir, version, sharedLibPath string) (*Snapshot, error) {
	root := filepath.Join(dir, version)
	var manifest Manifest
	if err := readJSONFile(filepath.Join(root, manifestFile), &manifest); err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	if manifest.Version == "" {
		manifest.Version = version
	}

	vectorizers := make(map[string]*Vectorizer, len(manifest.Vectorizers))
	for field, file := range manifest.Vectorizers {
		var art vectorizerArtifact
		if err := readJSONFile(filepath.Join(root, file), &art); err != nil {
			return nil, fmt.Errorf("load vectorizer %s: %w", field, err)
		}
		v, err := NewVectorizer(art.Vocabulary, art.IDF)
		if err != nil {
			return nil, fmt.Errorf("load vectorizer %s: %w", field, err)
		}
		vectorizers[field] = v
	}

	var scalerArt scalerArtifact
	if err := readJSONFile(filepath.Join(root, scalerFile), &scalerArt); err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}
	scaler, err := NewScaler(scalerArt.Columns, scalerArt.Mean, scalerArt.Std)
	if err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}

	regressors := make(map[string]Regressor, len(manifest.Models))
	for _, target := range []string{TargetBidderRate, TargetReferenceRate, TargetBidderCount} {
		ref, ok := manifest.Models[target]
		if !ok {
			return nil, fmt.Errorf("manifest %s: missing model for target %s", version, target)
		}
		r, err := loadRegressor(root, ref, scaler.Width(), sharedLibPath)
		if err != nil {
			return nil, fmt.Errorf("load model %s: %w", target, err)
		}
		regressors[target] = r
	}
	ensemble, err := NewEnsemble(
		regressors[TargetBidderRate],
		regressors[TargetReferenceRate],
		regressors[TargetBidderCount],
	)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Manifest:    manifest,
		Vectorizers: vectorizers,
		Scaler:      scaler,
		Ensemble:    ensemble,
	}, nil
}

func loadRegressor(root string, ref ModelRef, width int, sharedLibPath string) (Regressor, error) {
	switch ref.Kind {
	case ModelKindMLP:
		var params MLPParams
		if err := readJSONFile(filepath.Join(root, ref.File), &params); err != nil {
			return nil, err
		}
		return NewMLP(params)
	case ModelKindONNX:
		return NewONNXRegressor(ONNXRegressorConfig{
			ModelPath:     filepath.Join(root, ref.File),
			InputName:     ref.InputName,
			OutputName:    ref.OutputName,
			InputWidth:    width,
			SharedLibPath: sharedLibPath,
		})
	default:
		return nil, fmt.Errorf("unknown model kind %q", ref.Kind)
	}
}

// Close releases any session-backed regressors in the snapshot. MLP models
// hold no resources and are unaffected.
func (s *Snapshot) Close() error {
	var firstErr error
	for _, r := range []Regressor{
		s.Ensemble.bidderRate,
		s.Ensemble.referenceRate,
		s.Ensemble.bidderCount,
	} {
		if closer, ok := r.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SaveVectorizer writes a fitted vectorizer artifact under the version
// directory using the atomic tmp-then-rename pattern.
func SaveVectorizer(dir, version, file string, v *Vectorizer) error {
	return writeJSONAtomic(filepath.Join(dir, version, file), vectorizerArtifact{
		Vocabulary: v.Vocabulary(),
		IDF:        v.IDF(),
	})
}

// SaveScaler writes a fitted scaler artifact under the version directory.
func SaveScaler(dir, version string, s *Scaler) error {
	mean, std := s.Params()
	return writeJSONAtomic(filepath.Join(dir, version, scalerFile), scalerArtifact{
		Columns: s.Columns(),
		Mean:    mean,
		Std:     std,
	})
}

// SaveMLP writes one regressor's parameters under the version directory.
func SaveMLP(dir, version, file string, params MLPParams) error {
	return writeJSONAtomic(filepath.Join(dir, version, file), params)
}

// SaveManifest writes the manifest last so a version directory is only ever
// discovered complete.
func SaveManifest(dir string, m Manifest) error {
	if m.Version == "" {
		return fmt.Errorf("save manifest: empty version")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return writeJSONAtomic(filepath.Join(dir, m.Version, manifestFile), m)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
