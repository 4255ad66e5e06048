package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// TwoLink is a planar two-link revolute arm with known closed-form
// kinematics. It stands in for a real manipulator in tests and offline
// demos, and provides the analytic Jacobian the numerical estimator is
// checked against.
type TwoLink struct {
	L1 float64
	L2 float64
}

func NewTwoLink(l1, l2 float64) *TwoLink {
	return &TwoLink{L1: l1, L2: l2}
}

func (a *TwoLink) DOF() int     { return 2 }
func (a *TwoLink) TaskDim() int { return 2 }

func (a *TwoLink) EndEffector(q JointVector) (Position, error) {
	if len(q) != 2 {
		return nil, fmt.Errorf("kinematics: two-link arm expects 2 joints, got %d", len(q))
	}
	s1, c1 := math.Sincos(q[0])
	s12, c12 := math.Sincos(q[0] + q[1])
	return Position{
		a.L1*c1 + a.L2*c12,
		a.L1*s1 + a.L2*s12,
	}, nil
}

// AnalyticJacobian returns the exact 2x2 Jacobian at q.
func (a *TwoLink) AnalyticJacobian(q JointVector) *mat.Dense {
	s1, c1 := math.Sincos(q[0])
	s12, c12 := math.Sincos(q[0] + q[1])
	return mat.NewDense(2, 2, []float64{
		-a.L1*s1 - a.L2*s12, -a.L2 * s12,
		a.L1*c1 + a.L2*c12, a.L2 * c12,
	})
}
