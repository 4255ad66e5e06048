package solver

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/armctl/internal/kinematics"
)

func TestSolveMatchesLeastSquaresAsLambdaVanishes(t *testing.T) {
	// Well-conditioned square Jacobian: exact solution is J⁻¹·dx.
	j := mat.NewDense(2, 2, []float64{1.0, 0.2, -0.3, 0.8})
	dx := kinematics.Position{0.05, -0.02}

	var exactVec mat.VecDense
	if err := exactVec.SolveVec(j, mat.NewVecDense(2, dx)); err != nil {
		t.Fatal(err)
	}

	dq, clamped, err := DLS{Lambda: 1e-6}.Solve(j, dx)
	if err != nil {
		t.Fatal(err)
	}
	if clamped {
		t.Error("no limits configured, nothing should be clamped")
	}
	for i := range dq {
		if math.Abs(dq[i]-exactVec.AtVec(i)) > 1e-3 {
			t.Errorf("dq[%d] = %.8f, least-squares solution %.8f", i, dq[i], exactVec.AtVec(i))
		}
	}
}

func TestSolveRedundantArmPrefersSmallNorm(t *testing.T) {
	// 2x3: more joints than task dimensions. The damped solve must still
	// reproduce dx through J within the damping bias.
	j := mat.NewDense(2, 3, []float64{
		0.9, 0.1, -0.4,
		0.2, 0.7, 0.3,
	})
	dx := kinematics.Position{0.01, 0.02}

	dq, _, err := DLS{Lambda: 1e-4}.Solve(j, dx)
	if err != nil {
		t.Fatal(err)
	}

	var achieved mat.VecDense
	achieved.MulVec(j, mat.NewVecDense(3, dq))
	for i := range dx {
		if math.Abs(achieved.AtVec(i)-dx[i]) > 1e-5 {
			t.Errorf("J·dq[%d] = %.8f, desired %.8f", i, achieved.AtVec(i), dx[i])
		}
	}
}

func TestSolveSingularWithZeroDamping(t *testing.T) {
	// Fully extended two-link arm: rank-1 Jacobian.
	arm := kinematics.NewTwoLink(0.5, 0.5)
	j := arm.AnalyticJacobian(kinematics.JointVector{0, 0})

	_, _, err := DLS{Lambda: 0}.Solve(j, kinematics.Position{0.01, 0})
	if !errors.Is(err, ErrSingular) {
		t.Fatalf("expected ErrSingular, got %v", err)
	}
}

func TestSolveBoundedAtSingularity(t *testing.T) {
	arm := kinematics.NewTwoLink(0.5, 0.5)
	j := arm.AnalyticJacobian(kinematics.JointVector{0, 0})

	lambda := 0.05
	dx := kinematics.Position{0.1, 0.05}
	dq, _, err := DLS{Lambda: lambda}.Solve(j, dx)
	if err != nil {
		t.Fatal(err)
	}

	for i, v := range dq {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("dq[%d] = %v, must be finite", i, v)
		}
	}
	// σ/(σ²+λ²) ≤ 1/(2λ) for all singular values σ.
	bound := dx.Norm() / (2 * lambda)
	if n := dq.Norm(); n > bound+1e-12 {
		t.Errorf("‖dq‖ = %.6f exceeds damping bound %.6f", n, bound)
	}
}

func TestSolveZeroDampingWellConditioned(t *testing.T) {
	j := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	dq, _, err := DLS{Lambda: 0}.Solve(j, kinematics.Position{0.3, -0.4})
	if err != nil {
		t.Fatalf("identity Jacobian with zero damping must solve: %v", err)
	}
	if math.Abs(dq[0]-0.3) > 1e-12 || math.Abs(dq[1]+0.4) > 1e-12 {
		t.Errorf("got %v", dq)
	}
}

func TestSolveDimensionMismatch(t *testing.T) {
	j := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	if _, _, err := (DLS{Lambda: 0.1}).Solve(j, kinematics.Position{1, 2, 3}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestLimitsComponentwiseClamp(t *testing.T) {
	// Arbitrarily large raw solve must come back within limits.
	j := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	limits := Limits{MaxStep: 0.05}

	dq, clamped, err := DLS{Lambda: 1e-3, Limits: limits}.Solve(j, kinematics.Position{10, -25})
	if err != nil {
		t.Fatal(err)
	}
	if !clamped {
		t.Error("expected clamping to be reported")
	}
	for i, v := range dq {
		if math.Abs(v) > limits.MaxStep+1e-15 {
			t.Errorf("dq[%d] = %.6f exceeds MaxStep %.3f", i, v, limits.MaxStep)
		}
	}
}

func TestLimitsNormClamp(t *testing.T) {
	dq := kinematics.JointVector{0.3, 0.4}
	clamped := Limits{MaxNorm: 0.1}.Apply(dq)
	if !clamped {
		t.Fatal("expected clamp")
	}
	if math.Abs(dq.Norm()-0.1) > 1e-12 {
		t.Errorf("norm after clamp = %.6f, expected 0.1", dq.Norm())
	}
	// direction preserved
	if math.Abs(dq[0]/dq[1]-0.75) > 1e-9 {
		t.Errorf("clamp must scale, not truncate: %v", dq)
	}
}

func TestLimitsDisabled(t *testing.T) {
	dq := kinematics.JointVector{1e6, -1e6}
	if (Limits{}).Apply(dq) {
		t.Error("zero limits must not clamp")
	}
}
