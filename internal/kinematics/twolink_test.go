package kinematics

import (
	"math"
	"testing"
)

func TestTwoLinkEndEffector(t *testing.T) {
	arm := NewTwoLink(1.0, 0.5)

	tests := []struct {
		name string
		q    JointVector
		x, y float64
	}{
		{"stretched along x", JointVector{0, 0}, 1.5, 0.0},
		{"stretched along y", JointVector{math.Pi / 2, 0}, 0.0, 1.5},
		{"elbow folded back", JointVector{0, math.Pi}, 0.5, 0.0},
		{"right angle elbow", JointVector{0, math.Pi / 2}, 1.0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := arm.EndEffector(tt.q)
			if err != nil {
				t.Fatalf("EndEffector failed: %v", err)
			}
			if math.Abs(p[0]-tt.x) > 1e-12 || math.Abs(p[1]-tt.y) > 1e-12 {
				t.Errorf("got (%.6f, %.6f), expected (%.6f, %.6f)", p[0], p[1], tt.x, tt.y)
			}
		})
	}
}

func TestTwoLinkWrongDOF(t *testing.T) {
	arm := NewTwoLink(1.0, 1.0)
	if _, err := arm.EndEffector(JointVector{0.1, 0.2, 0.3}); err == nil {
		t.Error("expected error for 3-element joint vector")
	}
}

func TestAnalyticJacobianMatchesDifferenceQuotient(t *testing.T) {
	arm := NewTwoLink(0.8, 0.6)
	q := JointVector{0.4, -0.7}
	eps := 1e-7

	j := arm.AnalyticJacobian(q)
	base, _ := arm.EndEffector(q)

	for c := 0; c < 2; c++ {
		qp := q.Clone()
		qp[c] += eps
		p, _ := arm.EndEffector(qp)
		for r := 0; r < 2; r++ {
			fd := (p[r] - base[r]) / eps
			if math.Abs(fd-j.At(r, c)) > 1e-5 {
				t.Errorf("J[%d,%d]: analytic %.8f, finite difference %.8f", r, c, j.At(r, c), fd)
			}
		}
	}
}

func TestVectorHelpers(t *testing.T) {
	q := JointVector{1, 2}
	c := q.Clone()
	c[0] = 9
	if q[0] != 1 {
		t.Error("Clone should not alias the original")
	}

	sum := q.Add(JointVector{0.5, -0.5})
	if sum[0] != 1.5 || sum[1] != 1.5 {
		t.Errorf("Add: got %v", sum)
	}

	d := Position{3, 4}.Sub(Position{0, 0})
	if d.Norm() != 5 {
		t.Errorf("Norm: got %f, expected 5", d.Norm())
	}

	if (Position{math.NaN(), 0}).IsValid() {
		t.Error("NaN position should be invalid")
	}
	if !(JointVector{0, 0}).IsValid() {
		t.Error("zero joint vector should be valid")
	}
}
