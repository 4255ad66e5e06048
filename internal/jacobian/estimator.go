// Package jacobian estimates the manipulator Jacobian numerically by
// forward finite differences over a kinematics.Model.
package jacobian

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/armctl/internal/kinematics"
)

// ErrEstimation indicates a perturbation evaluation failed mid-estimate.
// The estimator never returns a partially filled matrix.
var ErrEstimation = errors.New("jacobian: estimation failed")

// Estimator computes a finite-difference Jacobian estimate. Eps is the
// per-joint perturbation in radians; the truncation error of forward
// differencing is O(Eps).
type Estimator struct {
	Eps float64
}

// Estimate evaluates the model once at q and once per joint at q+Eps·e_j,
// assembling column j from the forward-difference quotient. The matrix has
// one row per task-space dimension and one column per joint.
//
// If the model mutates external state (implements kinematics.Restorer), the
// base configuration is restored before returning, on success and on error.
func (e Estimator) Estimate(m kinematics.Model, q kinematics.JointVector) (*mat.Dense, error) {
	if e.Eps <= 0 {
		return nil, fmt.Errorf("%w: perturbation step must be positive, got %g", ErrEstimation, e.Eps)
	}
	if len(q) != m.DOF() {
		return nil, fmt.Errorf("%w: joint vector length %d != model DOF %d", ErrEstimation, len(q), m.DOF())
	}

	base, err := m.EndEffector(q)
	if err != nil {
		return nil, fmt.Errorf("%w: base evaluation: %w", ErrEstimation, err)
	}

	rows, cols := m.TaskDim(), m.DOF()
	j := mat.NewDense(rows, cols, nil)

	for c := 0; c < cols; c++ {
		qp := q.Clone()
		qp[c] += e.Eps

		p, err := m.EndEffector(qp)
		if err != nil {
			restore(m, q)
			return nil, fmt.Errorf("%w: probing joint %d: %w", ErrEstimation, c, err)
		}
		for r := 0; r < rows; r++ {
			j.Set(r, c, (p[r]-base[r])/e.Eps)
		}
	}

	if err := restore(m, q); err != nil {
		return nil, fmt.Errorf("%w: restoring base configuration: %w", ErrEstimation, err)
	}
	return j, nil
}

func restore(m kinematics.Model, q kinematics.JointVector) error {
	if r, ok := m.(kinematics.Restorer); ok {
		return r.Restore(q)
	}
	return nil
}
