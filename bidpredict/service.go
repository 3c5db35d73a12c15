package bidpredict

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yashubustudio/bidpredict/tokenize"
)

// Text-score field names; they key the manifest's vectorizer map and the
// score cache.
const (
	FieldInstitution = "institution"
	FieldRegion      = "region"
	FieldKeyword     = "keyword"
)

// Service runs the full inference pipeline: text scoring, feature
// engineering, standardization, ensemble prediction, and outcome
// post-processing. It is safe for concurrent use; the frozen model state
// lives in an atomically swappable snapshot.
type Service struct {
	cfg       Config
	tokenizer tokenize.Tokenizer
	snapshot  atomic.Pointer[Snapshot]
	cache     atomic.Pointer[scoreCache]
	engineer  Engineer
	logger    *zap.Logger
}

// NewService loads the configured model version and prepares the pipeline.
func NewService(cfg Config, tk tokenize.Tokenizer, logger *zap.Logger) (*Service, error) {
	if tk == nil {
		return nil, errors.New("tokenizer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	snap, err := LoadSnapshot(cfg.ArtifactDir, cfg.ModelVersion, cfg.OrtLibPath)
	if err != nil {
		return nil, fmt.Errorf("load model version %s: %w", cfg.ModelVersion, err)
	}
	if snap.Manifest.BidType != cfg.BidType {
		snap.Close()
		return nil, fmt.Errorf("model version %s serves %s bids, config requests %s",
			cfg.ModelVersion, snap.Manifest.BidType, cfg.BidType)
	}
	s := &Service{
		cfg:       cfg,
		tokenizer: tk,
		logger:    logger,
	}
	s.snapshot.Store(snap)
	s.cache.Store(newScoreCache(cfg.CacheDir, snap.Version()))
	logger.Info("model snapshot loaded",
		zap.String("version", snap.Version()),
		zap.String("bidType", string(snap.Manifest.BidType)),
		zap.Int("columns", snap.Scaler.Width()))
	return s, nil
}

// Snapshot returns the currently served model state.
func (s *Service) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Reload swaps in a new model version and returns the replaced snapshot.
// In-flight requests keep the snapshot they started with, so the caller
// must not Close the returned snapshot until those have drained.
func (s *Service) Reload(version string) (*Snapshot, error) {
	snap, err := LoadSnapshot(s.cfg.ArtifactDir, version, s.cfg.OrtLibPath)
	if err != nil {
		return nil, fmt.Errorf("load model version %s: %w", version, err)
	}
	if snap.Manifest.BidType != s.cfg.BidType {
		snap.Close()
		return nil, fmt.Errorf("model version %s serves %s bids, config requests %s",
			version, snap.Manifest.BidType, s.cfg.BidType)
	}
	old := s.snapshot.Swap(snap)
	s.cache.Store(newScoreCache(s.cfg.CacheDir, snap.Version()))
	s.logger.Info("model snapshot swapped",
		zap.String("from", old.Version()),
		zap.String("to", snap.Version()))
	return old, nil
}

// Close releases the current snapshot's resources.
func (s *Service) Close() error {
	if snap := s.snapshot.Load(); snap != nil {
		return snap.Close()
	}
	return nil
}

// ScoreTexts reduces a record's three free-text fields to their relevance
// scores under the current snapshot's frozen vocabularies.
func (s *Service) ScoreTexts(rec BidRecord) (TextScores, error) {
	return s.scoreTexts(s.snapshot.Load(), rec)
}

func (s *Service) scoreTexts(snap *Snapshot, rec BidRecord) (TextScores, error) {
	var out TextScores
	fields := []struct {
		name  string
		text  string
		score *float64
	}{
		{FieldInstitution, rec.InstitutionText, &out.Institution},
		{FieldRegion, rec.RegionText, &out.Region},
		{FieldKeyword, rec.KeywordText, &out.Keyword},
	}
	for _, f := range fields {
		score, err := s.scoreField(snap, f.name, f.text)
		if err != nil {
			return TextScores{}, err
		}
		*f.score = score
	}
	return out, nil
}

func (s *Service) scoreField(snap *Snapshot, field, text string) (float64, error) {
	v, ok := snap.Vectorizers[field]
	if !ok {
		return 0, fmt.Errorf("snapshot %s has no vectorizer for field %s", snap.Version(), field)
	}
	cleaned := tokenize.Clean(text)
	if cleaned == "" {
		return 0, nil
	}
	// A reload between the snapshot and cache loads can leave them one
	// version apart; scoring uncached is cheaper than serving a stale score.
	cache := s.cache.Load()
	if cache.version != snap.Version() {
		cache = nil
	}
	var key string
	if cache != nil {
		key = cache.key(field, cleaned)
		if score, ok := cache.get(key); ok {
			return score, nil
		}
		if score, ok := cache.load(key); ok {
			cache.put(key, score)
			return score, nil
		}
	}
	tokens, err := tokenize.ContentTokens(s.tokenizer, text)
	if err != nil {
		return 0, fmt.Errorf("tokenize %s text: %w", field, err)
	}
	score := v.Score(tokens)
	if cache != nil {
		cache.put(key, score)
		if err := cache.save(key, score); err != nil {
			s.logger.Warn("persist score cache entry", zap.String("field", field), zap.Error(err))
		}
	}
	return score, nil
}

// Predict runs the pipeline for a single record.
func (s *Service) Predict(ctx context.Context, rec BidRecord) (Decision, error) {
	out, err := s.predictBatch(ctx, []BidRecord{rec})
	if err != nil {
		return Decision{}, err
	}
	return out[0], nil
}

// PredictBatch runs the pipeline over many records, splitting them into
// chunks processed by a bounded worker group. Results keep input order. Any
// chunk failure fails the whole call; decisions are all-or-nothing.
func (s *Service) PredictBatch(ctx context.Context, recs []BidRecord) ([]Decision, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	const chunkSize = 256
	if len(recs) <= chunkSize {
		return s.predictBatch(ctx, recs)
	}
	out := make([]Decision, len(recs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchWorkers)
	for start := 0; start < len(recs); start += chunkSize {
		end := start + chunkSize
		if end > len(recs) {
			end = len(recs)
		}
		start, end := start, end
		g.Go(func() error {
			decisions, err := s.predictBatch(ctx, recs[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], decisions)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) predictBatch(ctx context.Context, recs []BidRecord) ([]Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := s.snapshot.Load()
	started := time.Now()

	scores := make([]TextScores, len(recs))
	for i, rec := range recs {
		if err := s.validateRecord(rec, snap); err != nil {
			return nil, err
		}
		ts, err := s.scoreTexts(snap, rec)
		if err != nil {
			return nil, err
		}
		scores[i] = ts
	}

	frame, err := s.buildFrame(recs, scores)
	if err != nil {
		return nil, err
	}
	s.engineer.Transform(frame)
	s.engineer.Temporal(frame)

	matrix, err := frame.Matrix(snap.Manifest.Columns)
	if err != nil {
		return nil, fmt.Errorf("assemble feature matrix: %w", err)
	}
	scaled, err := snap.Scaler.Transform(matrix)
	if err != nil {
		return nil, err
	}
	triples, err := snap.Ensemble.Predict(scaled)
	if err != nil {
		return nil, err
	}

	avgDiff := snap.Manifest.AvgDiffRatio
	if s.cfg.AvgDiffRatio > 0 {
		avgDiff = s.cfg.AvgDiffRatio
	}
	processor := OutcomeProcessor{AvgDiffRatio: avgDiff}
	now := time.Now().UTC()
	out := make([]Decision, len(recs))
	for i, rec := range recs {
		d, err := processor.Process(rec, triples[i])
		if err != nil {
			return nil, err
		}
		d.Scores = scores[i]
		d.ModelVersion = snap.Version()
		d.PredictedAt = now
		out[i] = d
	}
	s.logger.Debug("batch predicted",
		zap.Int("records", len(recs)),
		zap.String("version", snap.Version()),
		zap.Duration("elapsed", time.Since(started)))
	return out, nil
}

// validateRecord rejects records the pipeline cannot price before any model
// work happens.
func (s *Service) validateRecord(rec BidRecord, snap *Snapshot) error {
	if rec.BaseAmount <= 0 {
		return &InvalidBidRecordError{Field: "baseAmount", Reason: "must be positive"}
	}
	if rec.LowerBoundRatio <= 0 {
		return &InvalidBidRecordError{Field: "lowerBoundRatio", Reason: "must be positive"}
	}
	if rec.Type == "" {
		return &InvalidBidRecordError{Field: "type", Reason: "is required"}
	}
	if rec.Type != snap.Manifest.BidType {
		return &InvalidBidRecordError{
			Field:  "type",
			Reason: fmt.Sprintf("%s not served by model version %s", rec.Type, snap.Version()),
		}
	}
	return nil
}

// buildFrame lays the raw and text-score columns out in the frozen base
// order for the served bid type.
func (s *Service) buildFrame(recs []BidRecord, scores []TextScores) (*Frame, error) {
	n := len(recs)
	f := NewFrame(n)

	numeric := map[string][]float64{
		ColBaseAmount:       make([]float64, n),
		ColLowerBoundRatio:  make([]float64, n),
		ColParticipantCount: make([]float64, n),
		ColLicenseCode:      make([]float64, n),
		ColInstitutionScore: make([]float64, n),
		ColRegionScore:      make([]float64, n),
		ColKeywordScore:     make([]float64, n),
	}
	construction := s.cfg.BidType == BidTypeConstruction
	if construction {
		numeric[ColIndirectCost] = make([]float64, n)
		numeric[ColNetConstructionCost] = make([]float64, n)
	}

	bidNos := make([]string, n)
	institution := make([]string, n)
	region := make([]string, n)
	keyword := make([]string, n)
	for i, rec := range recs {
		numeric[ColBaseAmount][i] = float64(rec.BaseAmount)
		numeric[ColLowerBoundRatio][i] = rec.LowerBoundRatio
		numeric[ColParticipantCount][i] = float64(rec.ParticipantCount)
		numeric[ColLicenseCode][i] = licenseCodeValue(rec.LicenseRestrictionCode)
		numeric[ColInstitutionScore][i] = scores[i].Institution
		numeric[ColRegionScore][i] = scores[i].Region
		numeric[ColKeywordScore][i] = scores[i].Keyword
		if construction {
			numeric[ColIndirectCost][i] = float64(rec.IndirectCost)
			numeric[ColNetConstructionCost][i] = float64(rec.NetConstructionCost)
		}
		bidNos[i] = rec.BidNo
		institution[i] = rec.InstitutionText
		region[i] = rec.RegionText
		keyword[i] = rec.KeywordText
	}

	for _, name := range BaseColumns(s.cfg.BidType) {
		if err := f.SetNumeric(name, numeric[name]); err != nil {
			return nil, err
		}
	}
	if err := f.SetText(ColBidNo, bidNos); err != nil {
		return nil, err
	}
	if err := f.SetText(ColInstitutionText, institution); err != nil {
		return nil, err
	}
	if err := f.SetText(ColRegionText, region); err != nil {
		return nil, err
	}
	if err := f.SetText(ColKeywordText, keyword); err != nil {
		return nil, err
	}
	return f, nil
}

// licenseCodeValue parses a numeric license code, falling back to a stable
// hash bucket for non-numeric codes so unseen values still land in the range
// the models trained on.
func licenseCodeValue(code string) float64 {
	if code == "" {
		return 0
	}
	if v, err := strconv.ParseFloat(code, 64); err == nil {
		return v
	}
	return float64(hashBucket(code))
}

// hashBucket maps a string into [0, 1000000) with the FNV-1a hash.
func hashBucket(s string) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	var h uint64 = offset
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h % 1000000
}
