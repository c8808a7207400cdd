package executor

// State tracks a package through its build lifecycle within one matrix cell.
// Transitions are forward-only; the only internal loop is the retrying clone.
type State string

const (
	StatePending     State = "pending"
	StateCloning     State = "cloning"
	StateConfiguring State = "configuring"
	StateBuilding    State = "building"
	StateInstalling  State = "installing"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
	StateSkipped     State = "skipped"
	StateCanceled    State = "canceled"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped, StateCanceled:
		return true
	}
	return false
}

// Stage is a strongly-typed identifier for a build pipeline step. The stage
// recorded in a Result is the one that was executing when the outcome settled.
type Stage string

const (
	StageClone     Stage = "clone"
	StageConfigure Stage = "configure"
	StageBuild     Stage = "build"
	StageInstall   Stage = "install"
	StageCustom    Stage = "custom"
)
