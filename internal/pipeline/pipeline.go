// Package pipeline runs the load, clean, KPI, benchmark, and export phases
// for one input file.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/safety-kpi/internal/benchmark"
	"github.com/sells-group/safety-kpi/internal/cleaning"
	"github.com/sells-group/safety-kpi/internal/config"
	"github.com/sells-group/safety-kpi/internal/export"
	"github.com/sells-group/safety-kpi/internal/ingest"
	"github.com/sells-group/safety-kpi/internal/kpi"
	"github.com/sells-group/safety-kpi/internal/model"
)

// Mode selects how far a run goes.
type Mode string

const (
	// ModeClean stops after cleaning and writes the cleaned table and audit.
	ModeClean Mode = "clean"
	// ModeRun computes KPIs, rankings, trends, and risk as well.
	ModeRun Mode = "run"
)

// PhaseStatus is the outcome of one phase.
type PhaseStatus string

const (
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// PhaseResult records one phase's outcome and wall time.
type PhaseResult struct {
	Name     string      `json:"name"`
	Status   PhaseStatus `json:"status"`
	Duration int64       `json:"duration_ms"`
	Error    string      `json:"error,omitempty"`
}

// Result is everything a run produced.
type Result struct {
	RunID     string
	Report    *export.Report
	Artifacts []string
	Phases    []PhaseResult
}

// Pipeline runs the phases against one configuration.
type Pipeline struct {
	cfg *config.Config
	now func() time.Time
}

// New creates a Pipeline. cfg must have passed Validate for the mode the
// pipeline will run in.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg, now: time.Now}
}

// Run executes the pipeline. The first failing phase aborts the run and
// nothing is published.
func (p *Pipeline) Run(ctx context.Context, mode Mode) (*Result, error) {
	if mode != ModeClean && mode != ModeRun {
		return nil, eris.Errorf("pipeline: unknown mode %q", mode)
	}
	cleanOpts, err := p.cfg.CleaningOptions()
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: cleaning options")
	}
	format, err := ingest.ParseFormat(p.cfg.Input.Format)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: input format")
	}

	result := &Result{RunID: export.NewRunID()}
	log := zap.L().With(zap.String("run_id", result.RunID), zap.String("input", p.cfg.Input.Path))
	log.Info("pipeline: starting", zap.String("mode", string(mode)))

	trackPhase := func(name string, fn func() error) error {
		start := time.Now()
		fnErr := fn()
		phase := PhaseResult{Name: name, Status: PhaseStatusComplete, Duration: time.Since(start).Milliseconds()}
		if fnErr != nil {
			phase.Status = PhaseStatusFailed
			phase.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", phase.Duration),
				zap.Error(fnErr),
			)
		} else {
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", phase.Duration),
			)
		}
		result.Phases = append(result.Phases, phase)
		return fnErr
	}

	var ds *ingest.Dataset
	if err := trackPhase("load", func() error {
		var lerr error
		ds, lerr = ingest.Load(ctx, p.cfg.Input.Path, ingest.Options{
			Format:   format,
			Encoding: p.cfg.Input.Encoding,
			Sheet:    p.cfg.Input.Sheet,
		})
		return lerr
	}); err != nil {
		return result, err
	}

	var cleaned *cleaning.Result
	if err := trackPhase("clean", func() error {
		var cerr error
		cleaned, cerr = cleaning.Clean(ctx, ds.Records, cleanOpts)
		return cerr
	}); err != nil {
		return result, err
	}

	rep := &export.Report{
		RunID:    result.RunID,
		Source:   ds.Source,
		Schema:   string(ds.Schema),
		Params:   p.params(mode),
		Cleaning: cleaned,
	}
	result.Report = rep

	if mode == ModeRun {
		if err := p.analyze(trackPhase, cleaned, rep); err != nil {
			return result, err
		}
	}

	if err := trackPhase("export", func() error {
		var werr error
		result.Artifacts, werr = export.Write(ctx, rep, export.Options{
			Dir:      p.cfg.Output.Dir,
			Excluded: p.cfg.Output.Excluded,
			Workbook: p.cfg.Output.Workbook,
			Metrics:  p.cfg.Output.Metrics,
			Now:      p.now,
		})
		return werr
	}); err != nil {
		return result, err
	}

	log.Info("pipeline: complete",
		zap.Int64("retained", cleaned.Audit.Retained),
		zap.Int("kpi_results", len(rep.Results)),
		zap.Int("artifacts", len(result.Artifacts)),
	)
	return result, nil
}

// analyze computes KPIs and the benchmark views into rep.
func (p *Pipeline) analyze(trackPhase func(string, func() error) error, cleaned *cleaning.Result, rep *export.Report) error {
	names, err := p.cfg.KPINames()
	if err != nil {
		return eris.Wrap(err, "pipeline: kpi names")
	}
	groupings, err := p.cfg.Groupings()
	if err != nil {
		return eris.Wrap(err, "pipeline: groupings")
	}
	rankBy, err := kpi.ParseGrouping(p.cfg.KPI.RankGrouping)
	if err != nil {
		return eris.Wrap(err, "pipeline: rank grouping")
	}

	if err := trackPhase("kpi", func() error {
		var kerr error
		rep.Results, kerr = kpi.Compute(cleaned.InjuryRecords(), groupings, names, p.cfg.KPIOptions())
		return kerr
	}); err != nil {
		return err
	}

	return trackPhase("benchmark", func() error {
		rankings, rerr := benchmark.RankGrouping(rep.Results, rankBy.Name, names)
		if rerr != nil {
			return rerr
		}
		rep.Rankings = rankings
		rep.Trends = benchmark.Trends(rep.Results.Select(model.KPITRIR, kpi.ByIndustryYear.Name), model.KPITRIR)
		rep.Risks = benchmark.Score(rep.Results, rankBy.Name)
		return nil
	})
}

// params is the configuration echoed into the audit manifest.
func (p *Pipeline) params(mode Mode) map[string]any {
	out := map[string]any{
		"mode":   string(mode),
		"input":  p.cfg.Input,
		"clean":  p.cfg.Clean,
		"output": p.cfg.Output,
	}
	if mode == ModeRun {
		out["kpi"] = p.cfg.KPI
	}
	return out
}
