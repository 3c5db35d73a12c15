package bidpredict

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSV column headers for bid ingest. Header matching is case-insensitive and
// tolerant of surrounding whitespace; columns may appear in any order.
const (
	csvColBidNo               = "bid_no"
	csvColRound               = "round"
	csvColType                = "bid_type"
	csvColBaseAmount          = "base_amount"
	csvColLowerBoundRatio     = "lower_bound_ratio"
	csvColParticipantCount    = "participant_count"
	csvColIndirectCost        = "indirect_cost"
	csvColNetConstructionCost = "net_construction_cost"
	csvColLicenseCode         = "license_restriction_code"
	csvColInstitution         = "institution"
	csvColRegion              = "region"
	csvColKeyword             = "keyword"
	csvColMinimumBid          = "minimum_bid_amount"
	csvColActualAward         = "actual_award_amount"
)

// defaultParticipantCount stands in for records whose participant count was
// never published.
const defaultParticipantCount = 5

// ReadBidRecordsFile opens a CSV of bid records.
func ReadBidRecordsFile(path string, defaultType BidType) ([]BidRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bid file: %w", err)
	}
	defer f.Close()
	recs, err := ReadBidRecords(f, defaultType)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return recs, nil
}

// ReadBidRecords parses bid records from CSV data. The first row must be a
// header. Missing optional fields fall back to the conventions the historical
// data was stored with: participant count defaults to 5, missing rounds
// default to 1, and a missing license code stays empty so it scores as zero.
func ReadBidRecords(r io.Reader, defaultType BidType) ([]BidRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{csvColBaseAmount, csvColLowerBoundRatio} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var out []BidRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++
		rec, err := parseBidRow(row, idx, defaultType)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseBidRow(row []string, idx map[string]int, defaultType BidType) (BidRecord, error) {
	field := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := BidRecord{
		BidNo:           field(csvColBidNo),
		Type:            defaultType,
		InstitutionText: field(csvColInstitution),
		RegionText:      field(csvColRegion),
		KeywordText:     field(csvColKeyword),
	}

	if t := strings.ToLower(field(csvColType)); t != "" {
		switch BidType(t) {
		case BidTypeConstruction, BidTypeGoods, BidTypeService:
			rec.Type = BidType(t)
		default:
			return BidRecord{}, fmt.Errorf("unknown bid type %q", t)
		}
	}

	var err error
	if rec.BaseAmount, err = parseAmount(field(csvColBaseAmount)); err != nil {
		return BidRecord{}, fmt.Errorf("%s: %w", csvColBaseAmount, err)
	}
	if rec.LowerBoundRatio, err = parseRatio(field(csvColLowerBoundRatio)); err != nil {
		return BidRecord{}, fmt.Errorf("%s: %w", csvColLowerBoundRatio, err)
	}

	rec.Round = 1
	if s := field(csvColRound); s != "" {
		if rec.Round, err = strconv.Atoi(s); err != nil {
			return BidRecord{}, fmt.Errorf("%s: %w", csvColRound, err)
		}
	}
	rec.ParticipantCount = defaultParticipantCount
	if s := field(csvColParticipantCount); s != "" {
		if rec.ParticipantCount, err = strconv.Atoi(s); err != nil {
			return BidRecord{}, fmt.Errorf("%s: %w", csvColParticipantCount, err)
		}
	}
	for _, opt := range []struct {
		name string
		dst  *int64
	}{
		{csvColIndirectCost, &rec.IndirectCost},
		{csvColNetConstructionCost, &rec.NetConstructionCost},
		{csvColMinimumBid, &rec.MinimumBidAmount},
		{csvColActualAward, &rec.ActualAwardAmount},
	} {
		if s := field(opt.name); s != "" {
			if *opt.dst, err = parseAmount(s); err != nil {
				return BidRecord{}, fmt.Errorf("%s: %w", opt.name, err)
			}
		}
	}

	rec.LicenseRestrictionCode = field(csvColLicenseCode)
	return rec, nil
}

// parseAmount accepts whole currency amounts with optional thousands commas.
func parseAmount(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad amount %q", s)
	}
	return v, nil
}

// parseRatio accepts either a fraction (0.8725) or a percentage (87.25).
func parseRatio(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad ratio %q", s)
	}
	if v > 1 {
		v /= 100
	}
	return v, nil
}

// WriteDecisionsCSV writes prediction results with one row per decision.
func WriteDecisionsCSV(w io.Writer, decisions []Decision) error {
	cw := csv.NewWriter(w)
	header := []string{
		"bid_no", "round", "bid_type",
		"bidder_rate", "reference_rate", "bidder_count_estimate",
		"bidder_predicted_amount", "plan_amount_estimate", "reference_predicted_amount",
		"price_samples", "a_value",
		"bidder_outcome", "reference_outcome",
		"model_version", "predicted_at",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, d := range decisions {
		samples := make([]string, len(d.PriceSamples))
		for i, s := range d.PriceSamples {
			samples[i] = strconv.FormatInt(s, 10)
		}
		row := []string{
			d.BidNo,
			strconv.Itoa(d.Round),
			string(d.Type),
			formatRate(d.Rates.BidderRate),
			formatRate(d.Rates.ReferenceRate),
			formatRate(d.Rates.BidderCountEstimate),
			strconv.FormatInt(d.BidderPredictedAmount, 10),
			strconv.FormatInt(d.PlanAmountEstimate, 10),
			strconv.FormatInt(d.ReferencePredictedAmount, 10),
			strings.Join(samples, "|"),
			strconv.FormatBool(d.AValue),
			string(d.BidderOutcome),
			string(d.ReferenceOutcome),
			d.ModelVersion,
			d.PredictedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
