// Package diagnostics collects the structured findings produced by the
// Replica semantic verifier into one ordered report. The report is the
// boundary handed to the external diagnostic renderer: findings are keyed
// by source position, deduplicated, and never downgraded - any finding
// blocks code generation.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/replica-lang/replica/internal/position"
)

// ErrorKind identifies the class of a semantic finding
type ErrorKind int

const (
	// Structural and lookup errors. These abort further analysis of the
	// affected declaration only; the rest of the program is still checked.
	DuplicateDeclaration ErrorKind = iota
	UnknownIdentifier

	// Actor classification errors.
	IllegalSuspensionInImmediateInit
	MutationRequiresAsync
	ImmutableFieldAssignment
	IncompatibleActorPlacement

	// Ownership errors.
	UseAfterMove
	UseAfterPartialMove
	CannotMoveSharedReference

	// Scheduling errors.
	SchedulingRequiresAsync
	UnknownPriorityLevel
	CyclicTaskDependency
)

// String returns the diagnostic code for the error kind
func (ek ErrorKind) String() string {
	switch ek {
	case DuplicateDeclaration:
		return "duplicate-declaration"
	case UnknownIdentifier:
		return "unknown-identifier"
	case IllegalSuspensionInImmediateInit:
		return "illegal-suspension-in-immediate-init"
	case MutationRequiresAsync:
		return "mutation-requires-async"
	case ImmutableFieldAssignment:
		return "immutable-field-assignment"
	case IncompatibleActorPlacement:
		return "incompatible-actor-placement"
	case UseAfterMove:
		return "use-after-move"
	case UseAfterPartialMove:
		return "use-after-partial-move"
	case CannotMoveSharedReference:
		return "cannot-move-shared-reference"
	case SchedulingRequiresAsync:
		return "scheduling-requires-async"
	case UnknownPriorityLevel:
		return "unknown-priority-level"
	case CyclicTaskDependency:
		return "cyclic-task-dependency"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the error kind as its diagnostic code
func (ek ErrorKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(ek.String())
}

// RelatedInformation points at a prior operation that explains a finding,
// such as the original move site for a use-after-move.
type RelatedInformation struct {
	Message string        `json:"message"`
	Span    position.Span `json:"span"`
}

// Finding represents a single semantic verification failure
type Finding struct {
	Kind    ErrorKind            `json:"kind"`
	Span    position.Span        `json:"span"`
	Message string               `json:"message"`
	Related []RelatedInformation `json:"related,omitempty"`
}

// String returns a single-line rendering of the finding
func (f Finding) String() string {
	return fmt.Sprintf("%s: error[%s]: %s", f.Span, f.Kind, f.Message)
}

// Report aggregates findings from all analyses for one verifier invocation
type Report struct {
	findings []Finding
}

// NewReport creates an empty report
func NewReport() *Report {
	return &Report{}
}

// Add records a finding
func (r *Report) Add(finding Finding) {
	r.findings = append(r.findings, finding)
}

// Addf records a finding with a formatted message
func (r *Report) Addf(kind ErrorKind, span position.Span, format string, args ...interface{}) {
	r.Add(Finding{Kind: kind, Span: span, Message: fmt.Sprintf(format, args...)})
}

// Merge appends all findings from another report
func (r *Report) Merge(other *Report) {
	r.findings = append(r.findings, other.findings...)
}

// HasFindings returns true if any finding was recorded.
// The verifier is a gate: a non-empty report blocks code generation.
func (r *Report) HasFindings() bool {
	return len(r.findings) > 0
}

// Count returns the number of recorded findings before deduplication
func (r *Report) Count() int {
	return len(r.findings)
}

// Findings returns the findings ordered by source position with exact
// duplicates removed.
func (r *Report) Findings() []Finding {
	ordered := make([]Finding, len(r.findings))
	copy(ordered, r.findings)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start.Before(b.Span.Start)
		}
		return a.Kind < b.Kind
	})

	deduped := ordered[:0]
	seen := make(map[string]bool, len(ordered))
	for _, f := range ordered {
		key := fmt.Sprintf("%d|%s|%s", f.Kind, f.Span, f.Message)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, f)
	}

	return deduped
}

// FindingsOfKind returns the deduplicated findings of one kind, in order
func (r *Report) FindingsOfKind(kind ErrorKind) []Finding {
	var filtered []Finding
	for _, f := range r.Findings() {
		if f.Kind == kind {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// Format renders the report for terminal display
func (r *Report) Format(colorize bool) string {
	findings := r.Findings()
	if len(findings) == 0 {
		return "No findings."
	}

	var b strings.Builder
	for _, f := range findings {
		if colorize {
			b.WriteString("\033[31m")
		}
		b.WriteString("error")
		if colorize {
			b.WriteString("\033[0m")
		}
		b.WriteString(fmt.Sprintf("[%s]: %s\n", f.Kind, f.Message))
		b.WriteString(fmt.Sprintf("  --> %s\n", f.Span))

		for _, rel := range f.Related {
			b.WriteString(fmt.Sprintf("  note: %s\n", rel.Message))
			b.WriteString(fmt.Sprintf("  --> %s\n", rel.Span))
		}
	}

	b.WriteString(fmt.Sprintf("\nFound %d error(s).\n", len(findings)))

	return b.String()
}

// MarshalJSON encodes the ordered, deduplicated findings
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Findings []Finding `json:"findings"`
	}{Findings: r.Findings()})
}
