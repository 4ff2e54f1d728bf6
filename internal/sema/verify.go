package sema

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/replica-lang/replica/internal/ast"
	"github.com/replica-lang/replica/internal/diagnostics"
)

// Options configures one verifier invocation.
type Options struct {
	// Jobs bounds the number of concurrent per-actor analyses.
	// Zero selects GOMAXPROCS, overridable via REPLICA_MAX_CONCURRENCY.
	Jobs int
}

// Result is the verifier's annotated output: the input tree with resolved
// placement kinds and scheduling classes, the declaration table, the
// scheduling metadata, the per-method ownership histories, and the
// diagnostic report. A report with findings blocks code generation.
type Result struct {
	Program   *ast.Program
	Table     *DeclTable
	Schedules map[string]*MethodSchedule
	Ownership map[string]*MethodOwnership // keyed "Actor.method"
	Report    *diagnostics.Report
}

// OK reports whether the program passed verification.
func (r *Result) OK() bool {
	return !r.Report.HasFindings()
}

// Verify runs the complete semantic verification pipeline over one
// immutable syntax tree. The declaration table is built first; scheduling
// classification is independent of actor classification and runs
// concurrently with it; ownership tracking runs after classification
// because transition legality depends on placement kinds. Per-actor
// ownership analyses run concurrently, each into a private report merged
// deterministically afterwards. The pipeline holds no global state and is
// re-entrant.
func Verify(ctx context.Context, program *ast.Program, opts Options) (*Result, error) {
	report := diagnostics.NewReport()
	table := BuildDeclTable(program, report)

	result := &Result{
		Program:   program,
		Table:     table,
		Ownership: make(map[string]*MethodOwnership),
		Report:    report,
	}

	actors := table.Actors()

	scheduleReport := diagnostics.NewReport()
	ownershipReports := make([]*diagnostics.Report, len(actors))
	ownershipResults := make([][]*MethodOwnership, len(actors))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		result.Schedules = ClassifySchedules(table, scheduleReport)
		return nil
	})

	g.Go(func() error {
		ClassifyActors(table, report)

		inner, ictx := errgroup.WithContext(gctx)
		sem := make(chan struct{}, maxConcurrency(opts.Jobs))

		for i, actor := range actors {
			i, actor := i, actor

			inner.Go(func() error {
				select {
				case sem <- struct{}{}:
				case <-ictx.Done():
					return ictx.Err()
				}
				defer func() { <-sem }()

				r := diagnostics.NewReport()
				ownershipResults[i] = AnalyzeOwnership(table, actor, r)
				ownershipReports[i] = r
				return nil
			})
		}

		return inner.Wait()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in declaration order so the report is deterministic.
	for i := range actors {
		if ownershipReports[i] != nil {
			report.Merge(ownershipReports[i])
		}
		for _, mo := range ownershipResults[i] {
			result.Ownership[mo.Actor+"."+mo.Method] = mo
		}
	}
	report.Merge(scheduleReport)

	return result, nil
}

func maxConcurrency(jobs int) int {
	if jobs > 0 {
		return jobs
	}
	if v := os.Getenv("REPLICA_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.GOMAXPROCS(0)
}
