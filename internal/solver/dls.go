// Package solver maps desired task-space displacements to bounded
// joint-space updates via damped least squares.
package solver

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/armctl/internal/kinematics"
)

// ErrSingular indicates J·Jᵀ could not be factorized. Only reachable with
// zero damping at (or numerically near) a singular configuration; configure
// Lambda > 0 to rule it out.
var ErrSingular = errors.New("solver: singular configuration")

// Limits bounds the per-cycle joint update. Zero values disable the
// corresponding clamp.
type Limits struct {
	MaxStep float64 // componentwise cap on |Δq_i|, radians
	MaxNorm float64 // cap on ‖Δq‖
}

// Apply clamps dq in place and reports whether anything was clamped.
func (l Limits) Apply(dq kinematics.JointVector) bool {
	clamped := false
	if l.MaxStep > 0 {
		for i, v := range dq {
			switch {
			case v > l.MaxStep:
				dq[i] = l.MaxStep
				clamped = true
			case v < -l.MaxStep:
				dq[i] = -l.MaxStep
				clamped = true
			}
		}
	}
	if l.MaxNorm > 0 {
		if n := dq.Norm(); n > l.MaxNorm {
			scale := l.MaxNorm / n
			for i := range dq {
				dq[i] *= scale
			}
			clamped = true
		}
	}
	return clamped
}

// DLS is a damped least-squares solver:
//
//	Δq = Jᵀ · (J·Jᵀ + λ²·I)⁻¹ · Δx
//
// The damped normal matrix is square with side = task dimension, the cheap
// formulation when joint count exceeds task dimension, and symmetric
// positive definite for λ > 0, so a Cholesky factorization always exists.
// λ trades a bounded bias for invertibility near singular configurations;
// it is fixed for the run, never adapted online.
type DLS struct {
	Lambda float64
	Limits Limits
}

// Solve returns the clamped joint update for the desired displacement dx,
// and whether clamping occurred.
func (s DLS) Solve(j *mat.Dense, dx kinematics.Position) (kinematics.JointVector, bool, error) {
	if s.Lambda < 0 {
		return nil, false, fmt.Errorf("solver: damping must be >= 0, got %g", s.Lambda)
	}
	rows, cols := j.Dims()
	if len(dx) != rows {
		return nil, false, fmt.Errorf("solver: displacement dimension %d != jacobian rows %d", len(dx), rows)
	}

	var jjt mat.Dense
	jjt.Mul(j, j.T())

	damped := mat.NewSymDense(rows, nil)
	for r := 0; r < rows; r++ {
		for c := r + 1; c < rows; c++ {
			damped.SetSym(r, c, jjt.At(r, c))
		}
		damped.SetSym(r, r, jjt.At(r, r)+s.Lambda*s.Lambda)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(damped); !ok {
		return nil, false, fmt.Errorf("%w: J·Jᵀ + λ²I not positive definite (λ=%g)", ErrSingular, s.Lambda)
	}

	y := mat.NewVecDense(rows, nil)
	if err := chol.SolveVecTo(y, mat.NewVecDense(rows, dx)); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	dqv := mat.NewVecDense(cols, nil)
	dqv.MulVec(j.T(), y)

	dq := make(kinematics.JointVector, cols)
	for i := range dq {
		dq[i] = dqv.AtVec(i)
	}
	clamped := s.Limits.Apply(dq)
	return dq, clamped, nil
}
