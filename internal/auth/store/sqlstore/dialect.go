// Package sqlstore implements store.Store over database/sql. The sqlite and
// postgres drivers supply a Dialect and their own migrations.
package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the few places the supported databases differ.
type Dialect struct {
	Name string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// IsUniqueViolation reports whether err came from a unique constraint.
	IsUniqueViolation func(err error) bool
}

// QuestionPlaceholder renders "?" parameters.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder renders "$1", "$2", ... parameters.
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// rebind rewrites the "?" parameters in q for the dialect. Queries in this
// package never contain a literal question mark.
func (d Dialect) rebind(q string) string {
	if d.Placeholder == nil {
		return q
	}

	var b strings.Builder
	b.Grow(len(q) + 16)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
