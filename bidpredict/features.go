package bidpredict

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Engineer derives interaction, ratio, categorical, statistical and temporal
// columns from a base frame. Every sub-transform is pure, append-only, and
// skips silently when its source columns are absent, so frames from different
// bid types pass through the same pipeline.
//
// The transforms must produce the same values at training and inference time;
// any drift breaks the fitted models without an error surfacing anywhere.
type Engineer struct{}

// Transform applies the inference-path sub-transforms in their frozen order.
// The training-only utilities (clustering, polynomial expansion, selection,
// projection) live in advanced.go and are never called from here.
func (e Engineer) Transform(f *Frame) {
	e.Interaction(f)
	e.Ratio(f)
	e.Categorical(f)
	e.Statistical(f)
}

// Interaction appends products and squares of the monetary, ratio and count
// columns, plus pairwise products of the three text scores.
func (e Engineer) Interaction(f *Frame) {
	if f.Has(ColBaseAmount) && f.Has(ColLowerBoundRatio) {
		base, _ := f.Numeric(ColBaseAmount)
		ratio, _ := f.Numeric(ColLowerBoundRatio)
		_ = f.SetNumeric("base_amount_x_lower_bound_ratio", mulCols(base, ratio))
		_ = f.SetNumeric("base_amount_sq", mulCols(base, base))
		_ = f.SetNumeric("lower_bound_ratio_sq", mulCols(ratio, ratio))
	}
	if f.Has(ColParticipantCount) && f.Has(ColBaseAmount) {
		count, _ := f.Numeric(ColParticipantCount)
		base, _ := f.Numeric(ColBaseAmount)
		_ = f.SetNumeric("participant_count_x_base_amount", mulCols(count, base))
		_ = f.SetNumeric("participant_count_sq", mulCols(count, count))
	}
	if f.Has(ColLicenseCode) && f.Has(ColBaseAmount) {
		lic, _ := f.Numeric(ColLicenseCode)
		base, _ := f.Numeric(ColBaseAmount)
		_ = f.SetNumeric("license_restriction_code_x_base_amount", mulCols(lic, base))
	}

	scoreCols := []string{ColInstitutionScore, ColRegionScore, ColKeywordScore}
	for i, a := range scoreCols {
		for _, b := range scoreCols[i+1:] {
			if !f.Has(a) || !f.Has(b) {
				continue
			}
			av, _ := f.Numeric(a)
			bv, _ := f.Numeric(b)
			_ = f.SetNumeric(a+"_x_"+b, mulCols(av, bv))
		}
	}
}

// Ratio appends log1p transforms of the amount and count columns and the
// base x ratio / base identity ratio. The identity holds algebraically but
// the distinct multiply-then-divide path is preserved on purpose: the fitted
// models saw its exact floating-point output.
func (e Engineer) Ratio(f *Frame) {
	if f.Has(ColBaseAmount) && f.Has(ColLowerBoundRatio) {
		base, _ := f.Numeric(ColBaseAmount)
		ratio, _ := f.Numeric(ColLowerBoundRatio)
		out := make([]float64, len(base))
		for i := range base {
			if base[i] != 0 {
				out[i] = base[i] * ratio[i] / base[i]
			}
		}
		_ = f.SetNumeric("lower_bound_amount_ratio", out)
	}
	if count, ok := f.Numeric(ColParticipantCount); ok {
		_ = f.SetNumeric("participant_count_log", log1pCol(count))
	}
	if base, ok := f.Numeric(ColBaseAmount); ok {
		_ = f.SetNumeric("base_amount_log", log1pCol(base))
	}
}

// textColumns lists the free-text sources for the categorical transform, in
// the frozen order keyword, institution, region.
var textColumns = []string{ColKeywordText, ColInstitutionText, ColRegionText}

// Categorical appends character-level statistics for each free-text column:
// rune length, whitespace-separated word count, count of characters that are
// neither alphanumeric, Hangul, nor whitespace, digit count, and the
// uppercase ratio (with a zero length counted as 1 to avoid division by
// zero). The uppercase count covers A-Z only, matching the values the
// artifacts were fitted against.
func (e Engineer) Categorical(f *Frame) {
	for _, col := range textColumns {
		values, ok := f.Text(col)
		if !ok {
			continue
		}
		n := len(values)
		length := make([]float64, n)
		words := make([]float64, n)
		symbols := make([]float64, n)
		digits := make([]float64, n)
		upperRatio := make([]float64, n)
		for i, s := range values {
			var runeLen, symbolCount, digitCount, upperCount int
			for _, r := range s {
				runeLen++
				if unicode.IsDigit(r) {
					digitCount++
				}
				if r >= 'A' && r <= 'Z' {
					upperCount++
				}
				if !isTextWordRune(r) && !unicode.IsSpace(r) {
					symbolCount++
				}
			}
			length[i] = float64(runeLen)
			words[i] = float64(len(strings.Fields(s)))
			symbols[i] = float64(symbolCount)
			digits[i] = float64(digitCount)
			div := float64(runeLen)
			if div == 0 {
				div = 1
			}
			upperRatio[i] = float64(upperCount) / div
		}
		_ = f.SetNumeric(col+"_length", length)
		_ = f.SetNumeric(col+"_word_count", words)
		_ = f.SetNumeric(col+"_symbol_count", symbols)
		_ = f.SetNumeric(col+"_digit_count", digits)
		_ = f.SetNumeric(col+"_upper_ratio", upperRatio)
	}
}

// isTextWordRune reports whether r counts as a regular word character for the
// symbol-count feature: ASCII letters and digits, and Hangul syllables.
func isTextWordRune(r rune) bool {
	if r >= '0' && r <= '9' {
		return true
	}
	if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	return r >= 0xAC00 && r <= 0xD7A3
}

// Statistical appends, for every numeric column present when the transform
// starts, the deviation from the batch mean, the z-score (only when the
// sample stddev is positive), the deviation from the median, and the position
// within the interquartile range (only when Q3 > Q1).
//
// The stddev here is the sample (n-1) estimator, unlike the Scaler's
// population estimator; the fitted models depend on that difference.
func (e Engineer) Statistical(f *Frame) {
	// Snapshot first: the loop appends numeric columns of its own.
	cols := f.NumericColumns()
	for _, name := range cols {
		if isStatisticalColumn(name) {
			continue
		}
		values, _ := f.Numeric(name)
		mean := meanOf(values)
		diff := make([]float64, len(values))
		for i, v := range values {
			diff[i] = v - mean
		}
		_ = f.SetNumeric(name+"_mean_diff", diff)

		if std := sampleStd(values, mean); std > 0 {
			z := make([]float64, len(values))
			for i, v := range values {
				z[i] = (v - mean) / std
			}
			_ = f.SetNumeric(name+"_zscore", z)
		}

		sorted := sortedCopy(values)
		median := quantile(sorted, 0.5)
		medDiff := make([]float64, len(values))
		for i, v := range values {
			medDiff[i] = v - median
		}
		_ = f.SetNumeric(name+"_median_diff", medDiff)

		q1 := quantile(sorted, 0.25)
		q3 := quantile(sorted, 0.75)
		if q3 > q1 {
			pos := make([]float64, len(values))
			for i, v := range values {
				pos[i] = (v - q1) / (q3 - q1)
			}
			_ = f.SetNumeric(name+"_iqr_pos", pos)
		}
	}
}

// Temporal extracts calendar columns from the first valid YYYYMMDD run inside
// the bid identifier. A date is valid only when the year falls in 2020-2030,
// month in 1-12, day in 1-31, and the triple names a real calendar day.
// When no row carries a valid date the temporal columns are entirely absent;
// rows without one inside a mixed batch contribute zeros.
func (e Engineer) Temporal(f *Frame) {
	ids, ok := f.Text(ColBidNo)
	if !ok {
		return
	}
	n := len(ids)
	year := make([]float64, n)
	month := make([]float64, n)
	day := make([]float64, n)
	weekday := make([]float64, n)
	quarter := make([]float64, n)
	season := make([]float64, n)
	any := false
	for i, id := range ids {
		t, ok := extractBidDate(id)
		if !ok {
			continue
		}
		any = true
		year[i] = float64(t.Year())
		month[i] = float64(int(t.Month()))
		day[i] = float64(t.Day())
		weekday[i] = float64((int(t.Weekday()) + 6) % 7) // Monday=0
		quarter[i] = float64((int(t.Month())-1)/3 + 1)
		season[i] = float64(seasonOf(int(t.Month())))
	}
	if !any {
		return
	}
	_ = f.SetNumeric("bid_year", year)
	_ = f.SetNumeric("bid_month", month)
	_ = f.SetNumeric("bid_day", day)
	_ = f.SetNumeric("bid_weekday", weekday)
	_ = f.SetNumeric("bid_quarter", quarter)
	_ = f.SetNumeric("bid_season", season)
}

// isStatisticalColumn recognizes the transform's own output so a repeated
// run does not derive statistics of statistics.
func isStatisticalColumn(name string) bool {
	for _, suffix := range []string{"_mean_diff", "_zscore", "_median_diff", "_iqr_pos"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func seasonOf(month int) int {
	switch {
	case month >= 3 && month <= 5:
		return 1 // spring
	case month >= 6 && month <= 8:
		return 2 // summer
	case month >= 9 && month <= 11:
		return 3 // autumn
	default:
		return 4 // winter
	}
}

// extractBidDate scans the identifier for digit runs and parses the first run
// of eight or more digits whose leading YYYYMMDD passes the range check. A
// run that passes the ranges but names an impossible day (for example
// 20240231) aborts the scan and reports no date.
func extractBidDate(id string) (time.Time, bool) {
	runStart := -1
	for i := 0; i <= len(id); i++ {
		isDigit := i < len(id) && id[i] >= '0' && id[i] <= '9'
		if isDigit {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 && i-runStart >= 8 {
			run := id[runStart : runStart+8]
			y := atoi4(run[:4])
			m := atoi2(run[4:6])
			d := atoi2(run[6:8])
			if y >= 2020 && y <= 2030 && m >= 1 && m <= 12 && d >= 1 && d <= 31 {
				t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
				if t.Year() != y || int(t.Month()) != m || t.Day() != d {
					return time.Time{}, false
				}
				return t, true
			}
		}
		runStart = -1
	}
	return time.Time{}, false
}

func atoi4(s string) int {
	return int(s[0]-'0')*1000 + int(s[1]-'0')*100 + int(s[2]-'0')*10 + int(s[3]-'0')
}

func atoi2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}

func mulCols(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}

func log1pCol(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v < 0 {
			continue
		}
		out[i] = math.Log1p(v)
	}
	return out
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the n-1 estimator; it returns 0 for fewer than two samples.
func sampleStd(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

// quantile interpolates linearly between order statistics, matching the
// convention the training pipeline used.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
