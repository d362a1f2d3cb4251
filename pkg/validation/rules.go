package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

// Executor runs a rule set against the root element of a business document
type Executor interface {
	Execute(root *etree.Element) Results
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(root *etree.Element) Results

// Execute implements Executor
func (f ExecutorFunc) Execute(root *etree.Element) Results {
	return f(root)
}

// Rule checks that every element selected by Context has at least one
// descendant matching Require. With NotEmpty the matched elements must carry
// text, with Pattern their text must match the expression.
type Rule struct {
	ID       string
	Severity Severity
	Message  string

	// Context selects the elements the rule applies to. Defaults to ".".
	Context string
	// Require is evaluated relative to each context element.
	Require  string
	NotEmpty bool
	Pattern  string

	contextPath etree.Path
	requirePath etree.Path
	pattern     *regexp.Regexp
}

func (r *Rule) compile() error {
	if r.ID == "" {
		return fmt.Errorf("rule without id")
	}
	if r.Require == "" {
		return fmt.Errorf("rule %s: require path is empty", r.ID)
	}
	if r.Context == "" {
		r.Context = "."
	}

	var err error
	if r.contextPath, err = etree.CompilePath(r.Context); err != nil {
		return fmt.Errorf("rule %s: context: %w", r.ID, err)
	}
	if r.requirePath, err = etree.CompilePath(r.Require); err != nil {
		return fmt.Errorf("rule %s: require: %w", r.ID, err)
	}
	if r.Pattern != "" {
		if r.pattern, err = regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("rule %s: pattern: %w", r.ID, err)
		}
	}
	return nil
}

func (r *Rule) check(root *etree.Element) Results {
	var results Results
	for _, ctx := range root.FindElementsPath(r.contextPath) {
		matches := ctx.FindElementsPath(r.requirePath)
		if len(matches) == 0 {
			results = append(results, r.violation(ctx, r.Message))
			continue
		}
		for _, m := range matches {
			text := strings.TrimSpace(m.Text())
			switch {
			case r.NotEmpty && text == "":
				results = append(results, r.violation(m, r.Message))
			case r.pattern != nil && !r.pattern.MatchString(text):
				results = append(results, r.violation(m, fmt.Sprintf("%s (value %q)", r.Message, text)))
			}
		}
	}
	return results
}

func (r *Rule) violation(el *etree.Element, msg string) Result {
	return Result{
		Severity: r.Severity,
		RuleID:   r.ID,
		Location: el.GetPath(),
		Message:  msg,
	}
}

// RuleSet is an Executor made of path rules. Create it with NewRuleSet.
type RuleSet struct {
	ID    string
	Name  string
	rules []Rule
}

// NewRuleSet compiles the rules into a rule set.
func NewRuleSet(id, name string, rules ...Rule) (*RuleSet, error) {
	rs := &RuleSet{ID: id, Name: name}
	for _, r := range rules {
		if err := r.compile(); err != nil {
			return nil, fmt.Errorf("rule set %s: %w", id, err)
		}
		rs.rules = append(rs.rules, r)
	}
	return rs, nil
}

// Rules returns the number of rules in the set
func (rs *RuleSet) Rules() int {
	return len(rs.rules)
}

// Execute implements Executor
func (rs *RuleSet) Execute(root *etree.Element) Results {
	if root == nil {
		return Results{{Severity: SeverityError, RuleID: rs.ID, Message: "no document to validate"}}
	}
	var results Results
	for i := range rs.rules {
		results = append(results, rs.rules[i].check(root)...)
	}
	return results
}
