package sema

import (
	"testing"

	"github.com/replica-lang/replica/internal/diagnostics"
)

func analyzeActor(t *testing.T, source, actorName string) ([]*MethodOwnership, *diagnostics.Report) {
	t.Helper()

	table, report := classify(t, source)
	if report.HasFindings() {
		t.Fatalf("classification errors before ownership: %s", report.Format(false))
	}

	actor, ok := table.Actor(actorName)
	if !ok {
		t.Fatalf("actor %s not found", actorName)
	}
	return AnalyzeOwnership(table, actor, report), report
}

func TestUseAfterMoveReported(t *testing.T) {
	_, report := analyzeActor(t, `
single actor Job {
}

single actor Runner {
	async func run(j: Job) {
		let k = move j
		let m = j
	}
}`, "Runner")

	requireKinds(t, report, diagnostics.UseAfterMove)

	finding := report.Findings()[0]
	if len(finding.Related) != 1 {
		t.Fatal("use-after-move finding should point at the move site")
	}
	if finding.Related[0].Span.Start.Line >= finding.Span.Start.Line {
		t.Error("move site should precede the offending use")
	}
}

func TestMoveInOneBranchIsPartialMove(t *testing.T) {
	_, report := analyzeActor(t, `
single actor Job {
}

single actor Runner {
	async func run(j: Job, flag: Bool) {
		if flag {
			let k = move j
		}
		let m = j
	}
}`, "Runner")

	requireKinds(t, report, diagnostics.UseAfterPartialMove)
}

func TestMoveInBothBranchesIsFullMove(t *testing.T) {
	_, report := analyzeActor(t, `
single actor Job {
}

single actor Runner {
	async func run(j: Job, flag: Bool) {
		if flag {
			let a = move j
		} else {
			let b = move j
		}
		let m = j
	}
}`, "Runner")

	requireKinds(t, report, diagnostics.UseAfterMove)
}

func TestReturnInBranchDoesNotPoisonJoin(t *testing.T) {
	_, report := analyzeActor(t, `
single actor Job {
}

single actor Runner {
	async func run(j: Job, flag: Bool) -> Int {
		if flag {
			let a = move j
			return 1
		}
		let m = j
		return 0
	}
}`, "Runner")

	if report.HasFindings() {
		t.Fatalf("terminated branch leaked into join: %s", report.Format(false))
	}
}

func TestMovingSharedHandleRejected(t *testing.T) {
	_, report := analyzeActor(t, `
actor Remote {
}

actor Hub {
	async func grab(h: Remote) {
		let x = move h
	}
}`, "Hub")

	requireKinds(t, report, diagnostics.CannotMoveSharedReference)
}

func TestCopyOfSingleActorLeavesSourceUsable(t *testing.T) {
	_, report := analyzeActor(t, `
actor Remote {
}

single actor Local {
}

single actor Gateway {
	async func export(l: Local) {
		let r: Remote = copy l
		let again = l
	}
}`, "Gateway")

	if report.HasFindings() {
		t.Fatalf("copy wrongly consumed or rejected source: %s", report.Format(false))
	}
}

func TestCopySourceMustBeSingle(t *testing.T) {
	_, report := analyzeActor(t, `
actor Remote {
	async func export(h: Remote) {
		let r: Remote = copy h
	}
}`, "Remote")

	requireKinds(t, report, diagnostics.IncompatibleActorPlacement)
}

func TestCopyFromDistributedToSingleRejected(t *testing.T) {
	_, report := analyzeActor(t, `
actor Remote {
}

single actor Local {
}

actor Hub {
	async func pull(h: Remote) {
		let l: Local = copy h
	}
}`, "Hub")

	// Both ends are wrong: the source is distributed and the
	// destination is single.
	requireKinds(t, report,
		diagnostics.IncompatibleActorPlacement,
		diagnostics.IncompatibleActorPlacement)
}

func TestCopyDestinationMustBeDistributed(t *testing.T) {
	_, report := analyzeActor(t, `
single actor Local {
}

single actor Gateway {
	async func clone(l: Local) {
		let r: Local = copy l
	}
}`, "Gateway")

	requireKinds(t, report, diagnostics.IncompatibleActorPlacement)
}

func TestSharedHandleOfSingleActorRejected(t *testing.T) {
	_, report := analyzeActor(t, `
single actor Local {
}

single actor Gateway {
	async func expose(l: Local) {
		let h = shared l
	}
}`, "Gateway")

	requireKinds(t, report, diagnostics.IncompatibleActorPlacement)
}

func TestMoveParameterConsumesArgumentAtCallSite(t *testing.T) {
	_, report := analyzeActor(t, `
single actor Job {
}

single actor Sink {
	async func consume(move job: Job) {
	}
}

single actor Runner {
	async func hand(s: Sink, j: Job) {
		s.consume(j)
		let m = j
	}
}`, "Runner")

	requireKinds(t, report, diagnostics.UseAfterMove)
}

func TestRebindingOwnedActorTransfersOwnership(t *testing.T) {
	_, report := analyzeActor(t, `
single actor Job {
}

single actor Runner {
	async func run() {
		let a = Job()
		let b = a
		let c = a
	}
}`, "Runner")

	// 'let b = a' is a transfer, not an alias: two owners of one
	// instance never coexist, so the read in 'let c = a' is dead.
	requireKinds(t, report, diagnostics.UseAfterMove)

	finding := report.Findings()[0]
	if len(finding.Related) != 1 {
		t.Fatal("transfer site missing from the finding")
	}
}

func TestAliasingSharedHandleAllowed(t *testing.T) {
	_, report := analyzeActor(t, `
actor Remote {
}

actor Hub {
	async func fan(h: Remote) {
		let a = h
		let b = h
	}
}`, "Hub")

	if report.HasFindings() {
		t.Fatalf("shared handle aliasing rejected: %s", report.Format(false))
	}
}

func TestConstructorResultIsOwned(t *testing.T) {
	results, report := analyzeActor(t, `
single actor Job {
}

single actor Runner {
	async func spawn() {
		let j = Job()
		let k = move j
	}
}`, "Runner")

	if report.HasFindings() {
		t.Fatalf("unexpected findings: %s", report.Format(false))
	}
	if len(results) != 1 {
		t.Fatalf("got %d method results, want 1", len(results))
	}

	history := results[0].History["j"]
	if len(history) != 2 {
		t.Fatalf("got %d transitions for j, want 2: %v", len(history), history)
	}
	if history[0].State != StateOwned {
		t.Errorf("first transition = %s, want owned", history[0].State)
	}
	if history[1].State != StateMoved {
		t.Errorf("second transition = %s, want moved", history[1].State)
	}
}

func TestNonActorBindingsAreNotTracked(t *testing.T) {
	results, report := analyzeActor(t, `
single actor Calc {
	async func add(a: Int, b: Int) -> Int {
		let total = a + b
		return total
	}
}`, "Calc")

	if report.HasFindings() {
		t.Fatalf("unexpected findings: %s", report.Format(false))
	}
	if len(results[0].History) != 0 {
		t.Errorf("scalar bindings tracked: %v", results[0].History)
	}
}
