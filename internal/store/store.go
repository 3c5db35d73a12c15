// Package store provides SQLite-backed persistence for prediction decisions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"yashubustudio/bidpredict/bidpredict"
)

// Store wraps a SQLite database holding one row per (bid_no, round). Writing
// the same bid and round again replaces the previous decision; historical
// rounds of the same bid stay side by side.
type Store struct {
	db *sql.DB
}

// Open opens or creates the decision database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("store: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS decisions (
		bid_no                     TEXT NOT NULL,
		round                      INTEGER NOT NULL,
		run_id                     TEXT NOT NULL,
		bid_type                   TEXT NOT NULL,
		bidder_rate                REAL NOT NULL,
		reference_rate             REAL NOT NULL,
		bidder_count_estimate      REAL NOT NULL,
		bidder_predicted_amount    INTEGER NOT NULL,
		plan_amount_estimate       INTEGER NOT NULL,
		reference_predicted_amount INTEGER NOT NULL,
		price_samples              TEXT NOT NULL DEFAULT '[]',
		a_value                    INTEGER NOT NULL DEFAULT 0,
		bidder_outcome             TEXT NOT NULL,
		reference_outcome          TEXT NOT NULL,
		model_version              TEXT NOT NULL,
		predicted_at               INTEGER NOT NULL,
		PRIMARY KEY (bid_no, round)
	)`)
	return err
}

// Save upserts decisions under a fresh run identifier and returns it.
func (s *Store) Save(ctx context.Context, decisions []bidpredict.Decision) (string, error) {
	runID := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO decisions (
		bid_no, round, run_id, bid_type,
		bidder_rate, reference_rate, bidder_count_estimate,
		bidder_predicted_amount, plan_amount_estimate, reference_predicted_amount,
		price_samples, a_value, bidder_outcome, reference_outcome,
		model_version, predicted_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range decisions {
		samples, err := json.Marshal(d.PriceSamples)
		if err != nil {
			return "", fmt.Errorf("encode price samples: %w", err)
		}
		aValue := 0
		if d.AValue {
			aValue = 1
		}
		if _, err := stmt.ExecContext(ctx,
			d.BidNo, d.Round, runID, string(d.Type),
			d.Rates.BidderRate, d.Rates.ReferenceRate, d.Rates.BidderCountEstimate,
			d.BidderPredictedAmount, d.PlanAmountEstimate, d.ReferencePredictedAmount,
			string(samples), aValue, string(d.BidderOutcome), string(d.ReferenceOutcome),
			d.ModelVersion, d.PredictedAt.Unix(),
		); err != nil {
			return "", fmt.Errorf("insert decision %s round %d: %w", d.BidNo, d.Round, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// Get returns the stored decision for one bid and round.
func (s *Store) Get(ctx context.Context, bidNo string, round int) (bidpredict.Decision, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		bid_no, round, bid_type,
		bidder_rate, reference_rate, bidder_count_estimate,
		bidder_predicted_amount, plan_amount_estimate, reference_predicted_amount,
		price_samples, a_value, bidder_outcome, reference_outcome,
		model_version, predicted_at
	FROM decisions WHERE bid_no = ? AND round = ?`, bidNo, round)
	return scanDecision(row)
}

// ListRecent returns the most recently predicted decisions, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]bidpredict.Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		bid_no, round, bid_type,
		bidder_rate, reference_rate, bidder_count_estimate,
		bidder_predicted_amount, plan_amount_estimate, reference_predicted_amount,
		price_samples, a_value, bidder_outcome, reference_outcome,
		model_version, predicted_at
	FROM decisions ORDER BY predicted_at DESC, bid_no, round LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []bidpredict.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Count returns the number of stored decisions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&n)
	return n, err
}

// DeleteOlderThan removes decisions predicted before the cutoff and reports
// how many rows went away.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE predicted_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete decisions: %w", err)
	}
	return res.RowsAffected()
}

// OutcomeSummary counts decisions per bidder outcome for one model version.
// An empty version summarizes everything.
func (s *Store) OutcomeSummary(ctx context.Context, modelVersion string) (map[bidpredict.Classification]int, error) {
	query := `SELECT bidder_outcome, COUNT(*) FROM decisions`
	args := []any{}
	if modelVersion != "" {
		query += ` WHERE model_version = ?`
		args = append(args, modelVersion)
	}
	query += ` GROUP BY bidder_outcome`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	out := make(map[bidpredict.Classification]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		out[bidpredict.Classification(outcome)] = count
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (bidpredict.Decision, error) {
	var d bidpredict.Decision
	var bidType, bidderOutcome, referenceOutcome, samples string
	var aValue int
	var predictedAt int64
	err := row.Scan(
		&d.BidNo, &d.Round, &bidType,
		&d.Rates.BidderRate, &d.Rates.ReferenceRate, &d.Rates.BidderCountEstimate,
		&d.BidderPredictedAmount, &d.PlanAmountEstimate, &d.ReferencePredictedAmount,
		&samples, &aValue, &bidderOutcome, &referenceOutcome,
		&d.ModelVersion, &predictedAt,
	)
	if err != nil {
		return bidpredict.Decision{}, err
	}
	if err := json.Unmarshal([]byte(samples), &d.PriceSamples); err != nil {
		return bidpredict.Decision{}, fmt.Errorf("decode price samples: %w", err)
	}
	d.Type = bidpredict.BidType(bidType)
	d.AValue = aValue == 1
	d.BidderOutcome = bidpredict.Classification(bidderOutcome)
	d.ReferenceOutcome = bidpredict.Classification(referenceOutcome)
	d.PredictedAt = time.Unix(predictedAt, 0).UTC()
	return d, nil
}
