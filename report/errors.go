package report

import (
	"fmt"
	"strings"
)

// IncompleteApplicationDataError is returned instead of rendering a report
// that would be missing mandatory fields.
type IncompleteApplicationDataError struct {
	Fields []string
}

func (e *IncompleteApplicationDataError) Error() string {
	return fmt.Sprintf("cannot generate report: missing %s", strings.Join(e.Fields, ", "))
}
