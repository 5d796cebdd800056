package filter

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/vburojevic/dunehmr/internal/domain"
)

// WhereClause represents a parsed --where condition
type WhereClause struct {
	Field    string
	Operator string
	Value    string
	regex    *regexp.Regexp // Compiled regex for ~ and !~ operators
}

var whereFields = []string{"severity", "file", "message", "line", "column"}

// whereOps lists two-byte operators before their one-byte prefixes
var whereOps = []string{"!~", "!=", ">=", "<=", "~", "=", "^", "$"}

// ParseWhereClause parses a clause like "severity=error" or "message~Unbound".
// The first operator from the left splits field from value, so values may
// contain operator characters themselves.
func ParseWhereClause(clause string) (*WhereClause, error) {
	idx, op := splitOperator(clause)
	if op == "" {
		return nil, fmt.Errorf("no operator in where clause %q (use %s)", clause, strings.Join(whereOps, " "))
	}

	field := strings.ToLower(strings.TrimSpace(clause[:idx]))
	value := strings.TrimSpace(clause[idx+len(op):])
	switch {
	case field == "" || value == "":
		return nil, fmt.Errorf("invalid where clause %q: want field%svalue", clause, op)
	case !slices.Contains(whereFields, field):
		return nil, fmt.Errorf("unknown field %q in where clause (use %s)", field, strings.Join(whereFields, ", "))
	}

	wc := &WhereClause{Field: field, Operator: op, Value: value}
	if op == "~" || op == "!~" {
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("invalid regex in where clause %q: %w", clause, err)
		}
		wc.regex = re
	}
	return wc, nil
}

func splitOperator(clause string) (int, string) {
	for i := range len(clause) {
		for _, op := range whereOps {
			if strings.HasPrefix(clause[i:], op) {
				return i, op
			}
		}
	}
	return -1, ""
}

// Match checks if a report matches this where clause
func (wc *WhereClause) Match(r domain.Report) bool {
	fieldValue := wc.fieldValue(r)

	switch wc.Operator {
	case "=":
		return fieldValue == wc.Value
	case "!=":
		return fieldValue != wc.Value
	case "~": // Contains (regex)
		return wc.regex.MatchString(fieldValue)
	case "!~": // Not contains (regex)
		return !wc.regex.MatchString(fieldValue)
	case "^": // Starts with
		return strings.HasPrefix(fieldValue, wc.Value)
	case "$": // Ends with
		return strings.HasSuffix(fieldValue, wc.Value)
	case ">=":
		return wc.compare(r, true)
	case "<=":
		return wc.compare(r, false)
	}

	return false
}

func (wc *WhereClause) fieldValue(r domain.Report) string {
	switch wc.Field {
	case "severity":
		return string(r.Severity)
	case "file":
		return r.File
	case "message":
		return r.Message
	case "line":
		return strconv.Itoa(r.Line)
	case "column":
		return strconv.Itoa(r.Column)
	}
	return ""
}

// compare orders severities (warning < error) and numbers
func (wc *WhereClause) compare(r domain.Report, gte bool) bool {
	var have, want int
	switch wc.Field {
	case "severity":
		have, want = severityRank(r.Severity), severityRank(domain.Severity(wc.Value))
	case "line", "column":
		n, err := strconv.Atoi(wc.Value)
		if err != nil {
			return false
		}
		have, want = r.Line, n
		if wc.Field == "column" {
			have = r.Column
		}
	default:
		return false
	}
	if gte {
		return have >= want
	}
	return have <= want
}

func severityRank(s domain.Severity) int {
	switch s {
	case domain.SeverityError:
		return 2
	case domain.SeverityWarning:
		return 1
	}
	return 0
}

// WhereFilter requires every clause to match
type WhereFilter struct {
	clauses []*WhereClause
}

// NewWhereFilter parses clauses; nil when there are none
func NewWhereFilter(clauses []string) (*WhereFilter, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	f := &WhereFilter{}
	for _, c := range clauses {
		wc, err := ParseWhereClause(c)
		if err != nil {
			return nil, err
		}
		f.clauses = append(f.clauses, wc)
	}
	return f, nil
}

// Match reports whether r passes every clause. A nil filter passes everything.
func (f *WhereFilter) Match(r domain.Report) bool {
	if f == nil {
		return true
	}
	for _, wc := range f.clauses {
		if !wc.Match(r) {
			return false
		}
	}
	return true
}
