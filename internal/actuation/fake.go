package actuation

import (
	"fmt"

	"github.com/san-kum/armctl/internal/kinematics"
)

// Fake is a deterministic in-memory actuator backed by an analytic
// kinematic model. Writes take effect instantly and exactly; the clock only
// moves through AdvanceTime. Failure injection covers the controller's
// fail-stop paths.
type Fake struct {
	model kinematics.Model
	q     kinematics.JointVector
	now   float64

	writes    []kinematics.JointVector
	failAfter int
	failErr   error
}

func NewFake(model kinematics.Model, q0 kinematics.JointVector) *Fake {
	return &Fake{model: model, q: q0.Clone()}
}

// FailAfter makes the n+1-th write (and every one after it) return err.
func (f *Fake) FailAfter(n int, err error) {
	f.failAfter = n
	f.failErr = err
}

// Writes returns every joint vector successfully committed, probes
// included, in order.
func (f *Fake) Writes() []kinematics.JointVector { return f.writes }

func (f *Fake) JointAngles() (kinematics.JointVector, error) {
	return f.q.Clone(), nil
}

func (f *Fake) SetJointAngles(q kinematics.JointVector) error {
	if f.failErr != nil && len(f.writes) >= f.failAfter {
		return f.failErr
	}
	if len(q) != len(f.q) {
		return fmt.Errorf("actuation: joint vector length %d != %d", len(q), len(f.q))
	}
	f.q = q.Clone()
	f.writes = append(f.writes, q.Clone())
	return nil
}

func (f *Fake) EndEffectorPosition() (kinematics.Position, error) {
	return f.model.EndEffector(f.q)
}

func (f *Fake) AdvanceTime(dt float64) error {
	f.now += dt
	return nil
}

func (f *Fake) Time() float64 { return f.now }
