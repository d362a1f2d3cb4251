package validation

import (
	"fmt"
	"strings"
)

// Severity classifies a rule violation
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity parses "info", "warning" (or "warn") and "error"
// (or "fatal").
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "information":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarning, nil
	case "", "error", "fatal":
		return SeverityError, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

// Result is a single rule outcome
type Result struct {
	Severity Severity
	RuleID   string
	Location string
	Message  string
}

// IsFailure reports whether the result has error severity
func (r Result) IsFailure() bool {
	return r.Severity >= SeverityError
}

func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", r.Severity, r.RuleID)
	if r.Location != "" {
		fmt.Fprintf(&b, " at %s", r.Location)
	}
	fmt.Fprintf(&b, ": %s", r.Message)
	return b.String()
}

// Results is the output of an Executor
type Results []Result

// ErrorCount returns the number of error severity results
func (rs Results) ErrorCount() int {
	n := 0
	for _, r := range rs {
		if r.IsFailure() {
			n++
		}
	}
	return n
}

// WarningCount returns the number of warning severity results
func (rs Results) WarningCount() int {
	n := 0
	for _, r := range rs {
		if r.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// Failures returns only the error severity results
func (rs Results) Failures() Results {
	var out Results
	for _, r := range rs {
		if r.IsFailure() {
			out = append(out, r)
		}
	}
	return out
}

// Outcome classifies a set of results
type Outcome int

const (
	Pass Outcome = iota
	PassWithWarnings
	Fail
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case PassWithWarnings:
		return "pass-with-warnings"
	default:
		return "fail"
	}
}

// Outcome derives the overall outcome of the results
func (rs Results) Outcome() Outcome {
	switch {
	case rs.ErrorCount() > 0:
		return Fail
	case rs.WarningCount() > 0:
		return PassWithWarnings
	default:
		return Pass
	}
}
