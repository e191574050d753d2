package project

import (
	"fmt"
	"strings"
)

// ValidationError points at a malformed manifest entry. It is fatal and
// aborts before any graph work.
type ValidationError struct {
	Library string
	Object  string
	Msg     string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid manifest")
	if e.Library != "" {
		fmt.Fprintf(&sb, ", library %q", e.Library)
	}
	if e.Object != "" {
		fmt.Fprintf(&sb, ", object %q", e.Object)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	return sb.String()
}

// DanglingObjectError reports a link-order hook result that references an
// object the manifest never declared (or names one twice).
type DanglingObjectError struct {
	Module int
	Object string
	Reason string
}

func (e *DanglingObjectError) Error() string {
	return fmt.Sprintf("link order for module %d references %q: %s", e.Module, e.Object, e.Reason)
}

// GraphCycleError reports a dependency cycle in the emitted build graph,
// which indicates a configuration bug.
type GraphCycleError struct {
	Cycle []string
}

func (e *GraphCycleError) Error() string {
	return "build graph contains a cycle: " + strings.Join(e.Cycle, " -> ")
}
