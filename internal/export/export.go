// Package export writes the pipeline's output tables and audit artifacts
// into a run directory.
package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/safety-kpi/internal/benchmark"
	"github.com/sells-group/safety-kpi/internal/cleaning"
	"github.com/sells-group/safety-kpi/internal/kpi"
)

// Artifact file names.
const (
	FileCleaned    = "cleaned.csv"
	FileExcluded   = "excluded.csv"
	FileKPIResults = "kpi_results.csv"
	FileRankings   = "rankings.csv"
	FileRisk       = "industry_risk.csv"
	FileAudit      = "audit.yaml"
	FileWorkbook   = "benchmarks.xlsx"
	FileMetrics    = "metrics.prom"
)

// Report bundles everything a run produced. Results, Rankings, Trends, and
// Risks are empty for a cleaning-only run.
type Report struct {
	RunID    string
	Source   string
	Schema   string
	Params   any
	Cleaning *cleaning.Result
	Results  kpi.ResultSet
	Rankings []*benchmark.Ranking
	Trends   []benchmark.Trend
	Risks    []benchmark.Risk
}

// Options selects the output directory and optional artifacts.
type Options struct {
	Dir      string
	Excluded bool
	Workbook bool
	Metrics  bool
	// Now stamps the audit manifest; time.Now when nil.
	Now func() time.Time
}

type artifact struct {
	name  string
	write func(path string) error
}

// Write renders every artifact into a staging directory next to opts.Dir,
// concurrently, and moves them into opts.Dir only after all succeeded.
// Artifacts left in opts.Dir by an earlier run are replaced or removed; other
// files are untouched. Returns the published paths in name order.
func Write(ctx context.Context, rep *Report, opts Options) ([]string, error) {
	if rep == nil || rep.Cleaning == nil {
		return nil, eris.New("export: report has no cleaning result")
	}
	if opts.Dir == "" {
		return nil, eris.New("export: output directory is required")
	}
	if rep.RunID == "" {
		rep.RunID = NewRunID()
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	arts := plan(rep, opts)
	names := make([]string, 0, len(arts)+1)
	for _, a := range arts {
		names = append(names, a.name)
	}
	names = append(names, FileAudit)
	sort.Strings(names)

	manifest := Manifest{
		RunID:         rep.RunID,
		GeneratedAt:   now().UTC().Format(time.RFC3339),
		Source:        rep.Source,
		Schema:        rep.Schema,
		Params:        rep.Params,
		Cleaning:      rep.Cleaning.Audit,
		RetentionRate: rep.Cleaning.Audit.RetentionRate(),
		Artifacts:     names,
	}
	if len(rep.Results) > 0 {
		manifest.KPI = &KPISummary{
			Groupings: rep.Results.Groupings(),
			Results:   len(rep.Results),
			Undefined: rep.Results.Undefined(),
			Rankings:  len(rep.Rankings),
		}
	}
	arts = append(arts, artifact{FileAudit, fileWriter(func(w io.Writer) error {
		return WriteManifest(w, manifest)
	})})

	parent := filepath.Dir(filepath.Clean(opts.Dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, eris.Wrap(err, "export: create parent directory")
	}
	staging, err := os.MkdirTemp(parent, ".staging-"+rep.RunID+"-")
	if err != nil {
		return nil, eris.Wrap(err, "export: create staging directory")
	}
	defer os.RemoveAll(staging) //nolint:errcheck

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range arts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := a.write(filepath.Join(staging, a.name)); err != nil {
				return eris.Wrapf(err, "export: %s", a.name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "export: cancelled before publish")
	}

	if err := publish(staging, opts.Dir, names); err != nil {
		return nil, err
	}
	published := make([]string, 0, len(names))
	for _, name := range names {
		published = append(published, filepath.Join(opts.Dir, name))
	}

	zap.L().Info("artifacts written",
		zap.String("dir", opts.Dir),
		zap.String("run_id", rep.RunID),
		zap.Int("files", len(published)),
	)
	return published, nil
}

// knownArtifacts is every file name Write may produce.
var knownArtifacts = []string{
	FileCleaned, FileExcluded, FileKPIResults, FileRankings, FileRisk, FileAudit, FileWorkbook, FileMetrics,
}

// publish moves names from staging into dir. Artifacts of any earlier run
// are removed first and the manifest is moved last, so dir never holds a mix
// of runs and a present manifest means the run is complete. On failure the
// files already moved are removed again.
func publish(staging, dir string, names []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "export: create output directory")
	}
	for _, name := range knownArtifacts {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "export: remove stale %s", name)
		}
	}

	order := make([]string, 0, len(names))
	for _, name := range names {
		if name != FileAudit {
			order = append(order, name)
		}
	}
	if len(order) < len(names) {
		order = append(order, FileAudit)
	}

	var moved []string
	for _, name := range order {
		dst := filepath.Join(dir, name)
		if err := os.Rename(filepath.Join(staging, name), dst); err != nil {
			for _, m := range moved {
				os.Remove(m) //nolint:errcheck
			}
			return eris.Wrapf(err, "export: publish %s", name)
		}
		moved = append(moved, dst)
	}
	return nil
}

// plan lists the artifacts a report produces, excluding the manifest.
func plan(rep *Report, opts Options) []artifact {
	arts := []artifact{
		{FileCleaned, fileWriter(func(w io.Writer) error {
			return WriteCleaned(w, rep.Cleaning.Records)
		})},
	}
	if opts.Excluded {
		arts = append(arts, artifact{FileExcluded, fileWriter(func(w io.Writer) error {
			return WriteExcluded(w, rep.Cleaning.Excluded)
		})})
	}
	if len(rep.Results) > 0 {
		arts = append(arts,
			artifact{FileKPIResults, fileWriter(func(w io.Writer) error {
				return WriteKPIResults(w, rep.Results)
			})},
			artifact{FileRankings, fileWriter(func(w io.Writer) error {
				return WriteRankings(w, rep.Rankings)
			})},
		)
		if len(rep.Risks) > 0 {
			arts = append(arts, artifact{FileRisk, fileWriter(func(w io.Writer) error {
				return WriteRisk(w, rep.Risks, rep.Trends)
			})})
		}
		if opts.Workbook {
			arts = append(arts, artifact{FileWorkbook, func(path string) error {
				return WriteWorkbook(path, rep)
			}})
		}
	}
	if opts.Metrics {
		arts = append(arts, artifact{FileMetrics, func(path string) error {
			return WriteMetrics(path, rep)
		}})
	}
	return arts
}

func fileWriter(render func(io.Writer) error) func(string) error {
	return func(path string) (err error) {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "create file")
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = eris.Wrap(cerr, "close file")
			}
		}()
		return render(f)
	}
}
