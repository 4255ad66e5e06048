package kinematics

// Model maps a joint configuration to the end-effector position in task
// space (forward kinematics). Implementations may be analytic (TwoLink) or
// probe a live external system (actuation.Probe); evaluation can therefore
// fail.
type Model interface {
	EndEffector(q JointVector) (Position, error)
	DOF() int
	TaskDim() int
}

// Restorer is implemented by models whose evaluation mutates shared external
// state. Callers that evaluate speculative configurations must call Restore
// with the base configuration before handing control back.
type Restorer interface {
	Restore(q JointVector) error
}
