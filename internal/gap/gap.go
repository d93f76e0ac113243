// Package gap scores ledger completeness with a chain of independent,
// stateless rules and produces prioritized advisory issues.
package gap

import (
	"sort"

	"github.com/ashureev/elicit/internal/domain"
)

// Severity orders gap issues. Higher value means higher priority.
type Severity int

const (
	SeverityInfo Severity = iota + 1
	SeverityWarning
	SeverityCritical
	SeverityBlocker
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	case SeverityBlocker:
		return "blocker"
	default:
		return "unknown"
	}
}

// Issue is an advisory finding that a ledger field is missing or underdeveloped.
type Issue struct {
	Field       string
	Severity    Severity
	Advice      string
	MissingData bool
}

// Rule evaluates one completeness aspect of the ledger. It returns nil when
// the aspect is satisfied. Rules must be stateless and independent of each
// other so new rules can be added without modifying existing ones.
type Rule interface {
	Evaluate(state *domain.SessionState) *Issue
}

// Result is the outcome of a full analysis, issues sorted by severity descending.
type Result struct {
	Issues []Issue
}

// HighestPriority returns the most severe issue, or nil if none fired.
func (r *Result) HighestPriority() *Issue {
	if len(r.Issues) == 0 {
		return nil
	}
	return &r.Issues[0]
}

// CompletenessScore is a simple heuristic: 100 minus 10 points per severity unit.
func (r *Result) CompletenessScore() int {
	penalty := 0
	for _, i := range r.Issues {
		penalty += int(i.Severity) * 10
	}
	if penalty > 100 {
		return 0
	}
	return 100 - penalty
}

// Engine runs a rule chain over the ledger.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the given rule chain.
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// NewDefaultEngine creates an engine with the bundled rules.
func NewDefaultEngine() *Engine {
	return NewEngine(
		ScopeRule{},
		ActorExistenceRule{},
		BusinessGoalRule{},
		ProcessDepthRule{},
	)
}

// Analyze evaluates every rule and returns the sorted result.
func (e *Engine) Analyze(state *domain.SessionState) *Result {
	var issues []Issue
	for _, rule := range e.rules {
		if issue := rule.Evaluate(state); issue != nil {
			issues = append(issues, *issue)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity > issues[j].Severity
	})
	return &Result{Issues: issues}
}
