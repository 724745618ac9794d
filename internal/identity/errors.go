package identity

import (
	"fmt"
	"strings"
)

// NotFoundError indicates that no roster entry matched the target
// name/email. Fatal to the run; there is nothing to retry.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("data subject %q not found in export", e.Name)
}

// AmbiguousMatchError indicates that two or more roster entries matched and
// the supplied email (if any) did not narrow them to one. It carries the
// full candidate list so the operator can pick the right person and
// re-invoke with a disambiguating email.
type AmbiguousMatchError struct {
	Name       string
	Candidates []Identity
}

func (e *AmbiguousMatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "multiple roster entries match %q:", e.Name)
	for _, c := range e.Candidates {
		b.WriteString("\n  - ")
		b.WriteString(c.Display())
	}
	b.WriteString("\n\nprovide --email to disambiguate")
	return b.String()
}
