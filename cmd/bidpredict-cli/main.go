package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"yashubustudio/bidpredict/bidpredict"
	"yashubustudio/bidpredict/internal/store"
	"yashubustudio/bidpredict/tokenize"
)

type cliOptions struct {
	configPath string
	inputPath  string
	outputPath string
	outputDir  string
	bidType    string
	scoreText  string
	noStore    bool
	stdout     bool
	verbose    bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		log.Fatalf("bidpredict-cli: %v", err)
	}
	if err := run(opts); err != nil {
		log.Fatalf("bidpredict-cli: %v", err)
	}
}

func parseFlags() (cliOptions, error) {
	var opts cliOptions
	flag.StringVar(&opts.configPath, "config", "", "Path to config.json (default: ./config.json)")
	flag.StringVar(&opts.inputPath, "input", "", "CSV file containing bid records to predict")
	flag.StringVar(&opts.outputPath, "output", "", "CSV file to write results (default uses --output-dir/result_*.csv)")
	flag.StringVar(&opts.outputDir, "output-dir", "csv", "Directory where result CSVs are written when --output is omitted")
	flag.StringVar(&opts.bidType, "bid-type", "", "Default bid type for rows without one (construction, goods, service)")
	flag.StringVar(&opts.scoreText, "score", "", "Score a single text against the keyword vocabulary and exit")
	flag.BoolVar(&opts.noStore, "no-store", false, "Skip persisting decisions even when a store path is configured")
	flag.BoolVar(&opts.stdout, "stdout", false, "Print a per-record summary to STDOUT")
	flag.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --input FILE [options]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	opts.configPath = strings.TrimSpace(opts.configPath)
	opts.inputPath = strings.TrimSpace(opts.inputPath)
	opts.outputPath = strings.TrimSpace(opts.outputPath)
	opts.outputDir = strings.TrimSpace(opts.outputDir)
	opts.bidType = strings.TrimSpace(strings.ToLower(opts.bidType))

	if opts.inputPath == "" && opts.scoreText == "" {
		flag.Usage()
		return opts, errors.New("missing required --input file")
	}
	return opts, nil
}

func run(opts cliOptions) error {
	cfg, err := bidpredict.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.bidType != "" {
		cfg.BidType = bidpredict.BidType(opts.bidType)
	}

	logger, err := newLogger(opts.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	tk, err := newTokenizer(cfg)
	if err != nil {
		return fmt.Errorf("init tokenizer: %w", err)
	}

	service, err := bidpredict.NewService(cfg, tk, logger)
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}
	defer service.Close()

	if opts.scoreText != "" {
		return scoreOne(service, opts.scoreText)
	}

	records, err := bidpredict.ReadBidRecordsFile(opts.inputPath, cfg.BidType)
	if err != nil {
		return fmt.Errorf("read bid records: %w", err)
	}
	if len(records) == 0 {
		return errors.New("input file does not contain any bid records")
	}

	ctx := context.Background()
	decisions, err := service.PredictBatch(ctx, records)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	outputPath, err := resolveOutputPath(opts.outputPath, opts.outputDir)
	if err != nil {
		return err
	}
	if err := writeResultCSV(outputPath, decisions); err != nil {
		return err
	}
	fmt.Printf("saved %d predictions to %s\n", len(decisions), outputPath)

	if cfg.StorePath != "" && !opts.noStore {
		runID, err := persistDecisions(ctx, cfg.StorePath, decisions)
		if err != nil {
			return fmt.Errorf("persist decisions: %w", err)
		}
		logger.Info("decisions persisted", zap.String("runId", runID), zap.Int("count", len(decisions)))
	}

	if opts.stdout {
		printSummary(decisions)
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newTokenizer prefers the domain lexicon and falls back to the wordpiece
// tokenizer when only a tokenizer.json is configured.
func newTokenizer(cfg bidpredict.Config) (tokenize.Tokenizer, error) {
	if cfg.LexiconPath != "" {
		if lt, err := tokenize.LoadLexicon(cfg.LexiconPath); err == nil {
			return lt, nil
		} else if cfg.TokenizerPath == "" {
			return nil, err
		}
	}
	if cfg.TokenizerPath != "" {
		return tokenize.FromTokenizerFile(cfg.TokenizerPath)
	}
	return nil, errors.New("config provides neither lexiconPath nor tokenizerPath")
}

func scoreOne(service *bidpredict.Service, text string) error {
	scores, err := service.ScoreTexts(bidpredict.BidRecord{
		InstitutionText: text,
		RegionText:      text,
		KeywordText:     text,
	})
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	fmt.Printf("institution=%g region=%g keyword=%g\n", scores.Institution, scores.Region, scores.Keyword)
	return nil
}

func persistDecisions(ctx context.Context, path string, decisions []bidpredict.Decision) (string, error) {
	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer st.Close()
	return st.Save(ctx, decisions)
}

func resolveOutputPath(path, dir string) (string, error) {
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve output path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
		return absPath, nil
	}
	if dir == "" {
		dir = "csv"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	name := fmt.Sprintf("result_%s.csv", time.Now().Format("20060102_150405"))
	return filepath.Abs(filepath.Join(dir, name))
}

func writeResultCSV(path string, decisions []bidpredict.Decision) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()
	if err := bidpredict.WriteDecisionsCSV(f, decisions); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func printSummary(decisions []bidpredict.Decision) {
	for _, d := range decisions {
		fmt.Printf("%s round %d: rate=%.6f amount=%d outcome=%s samples=%v\n",
			d.BidNo, d.Round, d.Rates.BidderRate, d.BidderPredictedAmount, d.BidderOutcome, d.PriceSamples)
	}
}
