package cleaning

import (
	"context"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/safety-kpi/internal/model"
)

// ctxCheckEvery controls how often the per-record loops poll for
// cancellation.
const ctxCheckEvery = 10000

// Options configures Clean.
type Options struct {
	// ScreenFields are checked against IQR bounds; any violation excludes
	// the record.
	ScreenFields []model.Field
	// CapFields are winsorized at CapPercentile.
	CapFields         []model.Field
	IQRMultiplier     float64
	CapPercentile     float64
	SkipDegenerateIQR bool
}

// DefaultOptions screens hours worked and caps the right-tailed case and day
// counts. Fatalities are not capped: their 99th percentile is zero.
func DefaultOptions() Options {
	return Options{
		ScreenFields: []model.Field{model.FieldHours},
		CapFields: []model.Field{
			model.FieldRecordable,
			model.FieldLostTime,
			model.FieldDART,
			model.FieldLostDays,
		},
		IQRMultiplier:     DefaultIQRMultiplier,
		CapPercentile:     DefaultCapPercentile,
		SkipDegenerateIQR: true,
	}
}

// Validate rejects parameters outside their domain.
func (o Options) Validate() error {
	if !(o.IQRMultiplier > 0) || math.IsInf(o.IQRMultiplier, 0) {
		return &model.ConfigError{Kind: "iqr multiplier", Value: formatFloat(o.IQRMultiplier), Err: eris.New("must be positive")}
	}
	if !(o.CapPercentile > 0 && o.CapPercentile <= 1) {
		return &model.ConfigError{Kind: "cap percentile", Value: formatFloat(o.CapPercentile), Err: eris.New("must be in (0, 1]")}
	}
	for _, f := range append(append([]model.Field{}, o.ScreenFields...), o.CapFields...) {
		if _, err := model.ParseField(string(f)); err != nil {
			return err
		}
	}
	return nil
}

// Exclusion is a row that did not make it into the cleaned dataset.
type Exclusion struct {
	Line           int
	Record         model.InjuryRecord // zero for structural rejections
	Classification model.Classification
}

// Audit carries the cleaning counters. Structural + Outlier + Retained
// always equals Input.
type Audit struct {
	Input              int64                 `yaml:"input"`
	ExcludedStructural int64                 `yaml:"excluded_structural"`
	ExcludedOutlier    int64                 `yaml:"excluded_outlier"`
	WinsorizedValues   int64                 `yaml:"winsorized_values"`
	WinsorizedRecords  int64                 `yaml:"winsorized_records"`
	WinsorizedByField  map[model.Field]int64 `yaml:"winsorized_by_field"`
	Retained           int64                 `yaml:"retained"`
	Validity           ValidityReport        `yaml:"validity"`
	Bounds             []Bounds              `yaml:"iqr_bounds"`
	Caps               []Cap                 `yaml:"caps"`
}

// RetentionRate returns Retained / Input, or 0 for an empty input.
func (a Audit) RetentionRate() float64 {
	if a.Input == 0 {
		return 0
	}
	return float64(a.Retained) / float64(a.Input)
}

// CheckConservation verifies that every input row landed in exactly one
// bucket.
func (a Audit) CheckConservation() error {
	if got := a.ExcludedStructural + a.ExcludedOutlier + a.Retained; got != a.Input {
		return eris.Errorf("cleaning: conservation violated: structural %d + outlier %d + retained %d != input %d",
			a.ExcludedStructural, a.ExcludedOutlier, a.Retained, a.Input)
	}
	return nil
}

// Result is the cleaned dataset plus everything needed to audit it.
type Result struct {
	Records  []model.CleanedRecord
	Excluded []Exclusion
	Audit    Audit
}

// InjuryRecords returns the capped records of the cleaned dataset.
func (r *Result) InjuryRecords() []model.InjuryRecord {
	out := make([]model.InjuryRecord, len(r.Records))
	for i := range r.Records {
		out[i] = r.Records[i].Record
	}
	return out
}

// Clean runs normalization, IQR outlier exclusion, and winsorization over
// raws. IQR bounds come from the normalized population and caps from the
// retained population; both are computed before any value is capped.
// Returns ErrEmptyDataset when nothing survives.
func Clean(ctx context.Context, raws []model.RawRecord, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, eris.Wrap(err, "cleaning: options")
	}
	if len(raws) == 0 {
		return nil, eris.Wrap(model.ErrEmptyDataset, "cleaning: no input rows")
	}

	res := &Result{}
	res.Audit.Input = int64(len(raws))
	res.Audit.WinsorizedByField = make(map[model.Field]int64, len(opts.CapFields))

	// Pass 0: normalize.
	norm := NewNormalizer()
	valid := make([]model.InjuryRecord, 0, len(raws))
	lines := make([]int, 0, len(raws))
	for i, raw := range raws {
		if i%ctxCheckEvery == 0 && ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "cleaning: cancelled")
		}
		rec, inv := norm.Normalize(raw)
		if inv != nil {
			res.Excluded = append(res.Excluded, Exclusion{
				Line: raw.Line,
				Classification: model.Classification{
					Class:  model.ClassStructuralInvalid,
					Reason: inv.Reason,
					Detail: inv.Error(),
				},
			})
			continue
		}
		valid = append(valid, rec)
		lines = append(lines, raw.Line)
	}
	res.Audit.Validity = norm.Report()
	res.Audit.ExcludedStructural = res.Audit.Validity.Invalid()
	if len(valid) == 0 {
		return nil, eris.Wrapf(model.ErrEmptyDataset, "cleaning: all %d rows structurally invalid", len(raws))
	}

	// Pass 1: IQR bounds over the normalized population.
	res.Audit.Bounds = ComputeIQRBounds(valid, opts.ScreenFields, opts.IQRMultiplier, opts.SkipDegenerateIQR)
	filter := NewOutlierFilter(res.Audit.Bounds)
	retained := make([]model.InjuryRecord, 0, len(valid))
	retainedLines := make([]int, 0, len(valid))
	for i, rec := range valid {
		if i%ctxCheckEvery == 0 && ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "cleaning: cancelled")
		}
		if flagged := filter.Flag(rec); len(flagged) > 0 {
			res.Audit.ExcludedOutlier++
			res.Excluded = append(res.Excluded, Exclusion{
				Line:   lines[i],
				Record: rec,
				Classification: model.Classification{
					Class:         model.ClassOutlierExcluded,
					OutlierFields: flagged,
				},
			})
			continue
		}
		retained = append(retained, rec)
		retainedLines = append(retainedLines, lines[i])
	}
	if len(retained) == 0 {
		return nil, eris.Wrapf(model.ErrEmptyDataset, "cleaning: all %d valid rows excluded as outliers", len(valid))
	}

	// Pass 2: caps over the retained population, then apply.
	res.Audit.Caps = ComputeCaps(retained, opts.CapFields, opts.CapPercentile)
	w := NewWinsorizer(res.Audit.Caps)
	res.Records = make([]model.CleanedRecord, 0, len(retained))
	for i, rec := range retained {
		if i%ctxCheckEvery == 0 && ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "cleaning: cancelled")
		}
		capped, fields := w.Apply(rec)
		cls := model.Classification{Class: model.ClassValid}
		if len(fields) > 0 {
			cls = model.Classification{Class: model.ClassWinsorized, CappedFields: fields}
			res.Audit.WinsorizedRecords++
			res.Audit.WinsorizedValues += int64(len(fields))
			for _, f := range fields {
				res.Audit.WinsorizedByField[f]++
			}
		}
		res.Records = append(res.Records, model.CleanedRecord{
			Line:           retainedLines[i],
			Record:         capped,
			Original:       rec,
			Classification: cls,
		})
	}
	res.Audit.Retained = int64(len(res.Records))

	if err := res.Audit.CheckConservation(); err != nil {
		return nil, err
	}

	zap.L().Info("cleaning complete",
		zap.Int64("input", res.Audit.Input),
		zap.Int64("excluded_structural", res.Audit.ExcludedStructural),
		zap.Int64("excluded_outlier", res.Audit.ExcludedOutlier),
		zap.Int64("winsorized_values", res.Audit.WinsorizedValues),
		zap.Int64("retained", res.Audit.Retained),
		zap.Float64("retention_rate", res.Audit.RetentionRate()),
	)
	return res, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
