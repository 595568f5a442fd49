// Package filter evaluates ignore rules against request data to decide
// whether an exchange should be captured.
package filter

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// Value sources
const (
	SourcePath   = "path"
	SourceQuery  = "query"
	SourceHeader = "header"
	SourceBody   = "body"
)

// Comparison operators
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpRegex       = "regex"
	OpExists      = "exists"
	OpNotExists   = "not_exists"
	OpGreaterThan = "gt"
	OpLessThan    = "lt"
	OpGTE         = "gte"
	OpLTE         = "lte"
)

// Rule is one predicate over a request. For the path source an empty
// key selects the full request path; otherwise the key names a path
// parameter. For the body source the key is a gjson path expression.
type Rule struct {
	Source   string `json:"source" yaml:"source"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty"`
	Operator string `json:"operator" yaml:"operator"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
}

// RuleSet holds the active rules and supports atomic replacement, so
// rules loaded from configuration can be swapped on reload without
// rebuilding the consumers holding the set.
type RuleSet struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewRuleSet creates a rule set with the given initial rules
func NewRuleSet(rules []Rule) *RuleSet {
	return &RuleSet{rules: rules}
}

// Replace swaps the active rules
func (s *RuleSet) Replace(rules []Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

// Rules returns the active rules. The returned slice must not be
// mutated.
func (s *RuleSet) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// RequestData carries the request fields rules are evaluated against
type RequestData struct {
	Path        string
	PathParams  map[string]string
	QueryParams map[string][]string
	Headers     map[string][]string
	Body        string
}

// Evaluator evaluates rules against request data
type Evaluator struct{}

// NewEvaluator creates an evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// MatchAny reports whether at least one rule matches. An empty rule
// list matches nothing.
func (e *Evaluator) MatchAny(rules []Rule, data *RequestData) bool {
	for _, rule := range rules {
		if e.Match(rule, data) {
			return true
		}
	}
	return false
}

// MatchAll reports whether every rule matches. An empty rule list
// matches.
func (e *Evaluator) MatchAll(rules []Rule, data *RequestData) bool {
	for _, rule := range rules {
		if !e.Match(rule, data) {
			return false
		}
	}
	return true
}

// Match evaluates a single rule
func (e *Evaluator) Match(rule Rule, data *RequestData) bool {
	return compare(e.extract(rule.Source, rule.Key, data), rule.Operator, rule.Value)
}

func (e *Evaluator) extract(source, key string, data *RequestData) string {
	switch source {
	case SourcePath:
		if key == "" {
			return data.Path
		}
		return data.PathParams[key]
	case SourceQuery:
		if vals, ok := data.QueryParams[key]; ok && len(vals) > 0 {
			return vals[0]
		}
		return ""
	case SourceHeader:
		// Header names are case-insensitive
		for name, vals := range data.Headers {
			if strings.EqualFold(name, key) && len(vals) > 0 {
				return vals[0]
			}
		}
		return ""
	case SourceBody:
		result := gjson.Get(data.Body, key)
		if result.Exists() {
			return result.String()
		}
		return ""
	default:
		return ""
	}
}

func compare(actual, operator, expected string) bool {
	switch operator {
	case OpEquals:
		return actual == expected
	case OpNotEquals:
		return actual != expected
	case OpContains:
		return strings.Contains(actual, expected)
	case OpNotContains:
		return !strings.Contains(actual, expected)
	case OpStartsWith:
		return strings.HasPrefix(actual, expected)
	case OpEndsWith:
		return strings.HasSuffix(actual, expected)
	case OpRegex:
		re, err := regexp.Compile(expected)
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	case OpExists:
		return actual != ""
	case OpNotExists:
		return actual == ""
	case OpGreaterThan:
		return compareNumeric(actual, expected) > 0
	case OpLessThan:
		return compareNumeric(actual, expected) < 0
	case OpGTE:
		return compareNumeric(actual, expected) >= 0
	case OpLTE:
		return compareNumeric(actual, expected) <= 0
	default:
		return false
	}
}

// compareNumeric returns -1, 0, or 1. Non-numeric operands fall back
// to lexicographic comparison.
func compareNumeric(a, b string) int {
	aFloat, aErr := strconv.ParseFloat(a, 64)
	bFloat, bErr := strconv.ParseFloat(b, 64)

	if aErr != nil || bErr != nil {
		return strings.Compare(a, b)
	}

	switch {
	case aFloat < bFloat:
		return -1
	case aFloat > bFloat:
		return 1
	default:
		return 0
	}
}
