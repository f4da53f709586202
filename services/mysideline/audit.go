package mysideline

import (
	"fmt"
	"strings"
)

// errorSampler keeps the first N error messages of a run for the audit
// record. Everything past the cap is counted but not stored.
type errorSampler struct {
	limit    int
	overflow int
	samples  []string
}

func newErrorSampler(limit int) *errorSampler {
	return &errorSampler{limit: limit}
}

func (e *errorSampler) add(msg string) {
	if len(e.samples) >= e.limit {
		e.overflow++
		return
	}
	e.samples = append(e.samples, msg)
}

func (e *errorSampler) empty() bool {
	return len(e.samples) == 0
}

func (e *errorSampler) summary() string {
	if e.empty() {
		return ""
	}
	out := strings.Join(e.samples, "; ")
	if e.overflow > 0 {
		out += fmt.Sprintf(" (and %d more)", e.overflow)
	}
	return out
}
