package resolver

import (
	"fmt"
	"strings"
)

// MissingDependencyError reports a descriptor referencing an unknown package
// name. Known lists every declared package name to aid diagnosis.
type MissingDependencyError struct {
	Package    string
	Dependency string
	Known      []string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("package %s depends on unknown package %s (known packages: %s)",
		e.Package, e.Dependency, strings.Join(e.Known, ", "))
}

// CyclicDependencyError reports that the descriptor graph has no valid order.
// Cycle holds the smallest detected cycle in traversal order.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency detected: %s", strings.Join(e.Cycle, " -> "))
}
