package rules

import (
	"fmt"
	"log"
)

// Rule is one registered consistency check. Evaluate must be pure: no I/O,
// no mutation of the context, zero or more issues out. A rule is
// responsible for checking document presence itself and returning nil when
// a document it needs is absent.
type Rule struct {
	Code     string
	Category Category
	Severity Severity
	Evaluate func(*Context) []Issue
}

// RuleFailure records a rule that panicked during a run. The run itself
// carries on; the failure is metadata, not an abort.
type RuleFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of one validation run.
type Result struct {
	Issues   []Issue       `json:"issues"`
	Summary  Summary       `json:"summary"`
	Failures []RuleFailure `json:"failures,omitempty"`
}

// Engine executes a tagged rule registry against a context. Rules are
// independent, so execution order carries no semantics, but issues are
// always concatenated in registration order for deterministic output.
type Engine struct {
	registry []Rule
}

// NewEngine builds an engine over an explicit registry. Most callers want
// NewDefaultEngine.
func NewEngine(registry []Rule) *Engine {
	return &Engine{registry: registry}
}

// NewDefaultEngine builds an engine with the full built-in rule set.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultRules())
}

// Rules returns the registry in registration order.
func (e *Engine) Rules() []Rule {
	return e.registry
}

// Run evaluates every registered rule against the context.
func (e *Engine) Run(rc *Context) Result {
	return e.run(rc, nil)
}

// RunCategories evaluates only the rules tagged with one of the given
// categories. An empty category list behaves like Run.
func (e *Engine) RunCategories(rc *Context, categories ...Category) Result {
	if len(categories) == 0 {
		return e.Run(rc)
	}
	enabled := make(map[Category]struct{}, len(categories))
	for _, cat := range categories {
		enabled[cat] = struct{}{}
	}
	return e.run(rc, enabled)
}

func (e *Engine) run(rc *Context, enabled map[Category]struct{}) Result {
	result := Result{Issues: []Issue{}, Summary: NewSummary()}
	if rc == nil {
		rc = BuildContext(nil)
	}

	ordinal := 0
	for _, rule := range e.registry {
		if enabled != nil {
			if _, ok := enabled[rule.Category]; !ok {
				continue
			}
		}
		issues, failure := evaluateIsolated(rule, rc)
		if failure != nil {
			result.Failures = append(result.Failures, *failure)
			continue
		}
		for _, issue := range issues {
			ordinal++
			issue.ID = fmt.Sprintf("%s-%03d", issue.Code, ordinal)
			result.Issues = append(result.Issues, issue)
			result.Summary.add(issue)
		}
	}
	return result
}

// evaluateIsolated runs a single rule with panic isolation: a failing rule
// is skipped and reported, never allowed to abort the run.
func evaluateIsolated(rule Rule, rc *Context) (issues []Issue, failure *RuleFailure) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("rules: rule %s panicked: %v", rule.Code, r)
			issues = nil
			failure = &RuleFailure{Code: rule.Code, Message: fmt.Sprintf("%v", r)}
		}
	}()
	return rule.Evaluate(rc), nil
}
