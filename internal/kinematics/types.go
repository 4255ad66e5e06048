package kinematics

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// JointVector is an ordered set of joint angles in radians. Its length is
// the number of degrees of freedom under control.
type JointVector []float64

func (q JointVector) Clone() JointVector {
	c := make(JointVector, len(q))
	copy(c, q)
	return c
}

func (q JointVector) Add(other JointVector) JointVector {
	result := make(JointVector, len(q))
	for i := range q {
		if i < len(other) {
			result[i] = q[i] + other[i]
		} else {
			result[i] = q[i]
		}
	}
	return result
}

func (q JointVector) Norm() float64 {
	return floats.Norm(q, 2)
}

func (q JointVector) IsValid() bool {
	for _, v := range q {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Position is a task-space end-effector position (here planar: x, y).
type Position []float64

func (p Position) Clone() Position {
	c := make(Position, len(p))
	copy(c, p)
	return c
}

func (p Position) Sub(other Position) Position {
	result := make(Position, len(p))
	for i := range p {
		if i < len(other) {
			result[i] = p[i] - other[i]
		} else {
			result[i] = p[i]
		}
	}
	return result
}

func (p Position) Norm() float64 {
	return floats.Norm(p, 2)
}

func (p Position) IsValid() bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
