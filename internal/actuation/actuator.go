// Package actuation defines the I/O boundary to the manipulator: reading
// and commanding joint angles and advancing simulated time. The package
// carries no control logic; it exists so the controller can run against a
// deterministic fake as easily as against a live simulator session.
package actuation

import "github.com/san-kum/armctl/internal/kinematics"

// Actuator is the external-facing adapter for one manipulator. All time is
// simulation time, never wall-clock, so runs replay identically regardless
// of host speed.
type Actuator interface {
	// JointAngles reads the current joint configuration.
	JointAngles() (kinematics.JointVector, error)

	// SetJointAngles commands absolute joint positions directly,
	// bypassing any built-in target-tracking layer.
	SetJointAngles(q kinematics.JointVector) error

	// EndEffectorPosition reads the current task-space position of the
	// end effector.
	EndEffectorPosition() (kinematics.Position, error)

	// AdvanceTime advances the authoritative simulated clock by dt
	// seconds.
	AdvanceTime(dt float64) error

	// Time reports the current simulated time in seconds.
	Time() float64
}

// probeModel evaluates forward kinematics empirically: it writes a
// candidate configuration to the actuator and reads the resulting
// end-effector position back. Probes are destructive, so it implements
// kinematics.Restorer; the Jacobian estimator restores the base
// configuration before any real command is issued.
type probeModel struct {
	act     Actuator
	dof     int
	taskDim int
}

// Probe exposes an Actuator as a kinematics.Model backed by live probing.
func Probe(act Actuator, dof, taskDim int) kinematics.Model {
	return &probeModel{act: act, dof: dof, taskDim: taskDim}
}

func (m *probeModel) DOF() int     { return m.dof }
func (m *probeModel) TaskDim() int { return m.taskDim }

func (m *probeModel) EndEffector(q kinematics.JointVector) (kinematics.Position, error) {
	if err := m.act.SetJointAngles(q); err != nil {
		return nil, err
	}
	return m.act.EndEffectorPosition()
}

func (m *probeModel) Restore(q kinematics.JointVector) error {
	return m.act.SetJointAngles(q)
}
