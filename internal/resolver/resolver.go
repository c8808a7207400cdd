// Package resolver derives a deterministic build order from the package
// descriptor table. Resolution is a pure function over the table: it either
// returns a total order where every package appears after all of its
// dependencies, or a typed plan-level error before any build starts.
package resolver

import (
	"git.home.luguber.info/inful/cxxpack/internal/config"
)

// Resolve returns the packages in dependency order, preserving declaration
// order among independent packages so logs and reports are reproducible.
func Resolve(pkgs []config.Package) ([]config.Package, error) {
	byName := make(map[string]config.Package, len(pkgs))
	known := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		name := p.EffectiveName()
		byName[name] = p
		known = append(known, name)
	}

	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[string]int, len(pkgs))
	stack := make([]string, 0, len(pkgs))
	order := make([]config.Package, 0, len(pkgs))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case inStack:
			return &CyclicDependencyError{Cycle: extractCycle(stack, name)}
		}
		state[name] = inStack
		stack = append(stack, name)

		pkg := byName[name]
		for _, dep := range pkg.Dependencies {
			if _, ok := byName[dep]; !ok {
				return &MissingDependencyError{Package: name, Dependency: dep, Known: known}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
		order = append(order, pkg)
		return nil
	}

	for _, name := range known {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// extractCycle returns the stack suffix starting at the repeated node, which is
// the smallest cycle the traversal detected.
func extractCycle(stack []string, repeat string) []string {
	for i, n := range stack {
		if n == repeat {
			cycle := make([]string, len(stack)-i)
			copy(cycle, stack[i:])
			return cycle
		}
	}
	return []string{repeat}
}

// Dependents returns the names of every package that transitively depends on
// target, used to propagate a build failure to the packages it starves.
func Dependents(pkgs []config.Package, target string) map[string]bool {
	deps := make(map[string][]string, len(pkgs))
	for _, p := range pkgs {
		deps[p.EffectiveName()] = p.Dependencies
	}

	affected := map[string]bool{}
	// Fixed point: a package is affected if any dependency is the target or
	// already affected. Bounded by len(pkgs) iterations.
	for changed := true; changed; {
		changed = false
		for name, dd := range deps {
			if affected[name] {
				continue
			}
			for _, d := range dd {
				if d == target || affected[d] {
					affected[name] = true
					changed = true
					break
				}
			}
		}
	}
	return affected
}
