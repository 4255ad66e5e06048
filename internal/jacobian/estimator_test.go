package jacobian

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/armctl/internal/kinematics"
)

func maxAbsDiff(a, b *mat.Dense) float64 {
	r, c := a.Dims()
	worst := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if d := math.Abs(a.At(i, j) - b.At(i, j)); d > worst {
				worst = d
			}
		}
	}
	return worst
}

func TestEstimateConvergesToAnalytic(t *testing.T) {
	arm := kinematics.NewTwoLink(0.5, 0.5)
	q := kinematics.JointVector{0.6, -0.9}
	exact := arm.AnalyticJacobian(q)

	// Forward differencing is O(eps): errors must shrink monotonically.
	epsilons := []float64{1e-2, 1e-4, 1e-6}
	prevErr := math.Inf(1)
	for _, eps := range epsilons {
		j, err := Estimator{Eps: eps}.Estimate(arm, q)
		if err != nil {
			t.Fatalf("eps=%g: %v", eps, err)
		}
		diff := maxAbsDiff(j, exact)
		if diff >= prevErr {
			t.Errorf("eps=%g: error %.3e did not decrease (previous %.3e)", eps, diff, prevErr)
		}
		if diff > 10*eps {
			t.Errorf("eps=%g: error %.3e exceeds O(eps) bound", eps, diff)
		}
		prevErr = diff
	}
}

func TestEstimateDimensions(t *testing.T) {
	arm := kinematics.NewTwoLink(1, 1)
	j, err := Estimator{Eps: 1e-4}.Estimate(arm, kinematics.JointVector{0.1, 0.2})
	if err != nil {
		t.Fatal(err)
	}
	r, c := j.Dims()
	if r != arm.TaskDim() || c != arm.DOF() {
		t.Errorf("expected %dx%d, got %dx%d", arm.TaskDim(), arm.DOF(), r, c)
	}
}

func TestEstimateInvalidEps(t *testing.T) {
	arm := kinematics.NewTwoLink(1, 1)
	for _, eps := range []float64{0, -1e-4} {
		if _, err := (Estimator{Eps: eps}).Estimate(arm, kinematics.JointVector{0, 0}); !errors.Is(err, ErrEstimation) {
			t.Errorf("eps=%g: expected ErrEstimation, got %v", eps, err)
		}
	}
}

func TestEstimateDOFMismatch(t *testing.T) {
	arm := kinematics.NewTwoLink(1, 1)
	if _, err := (Estimator{Eps: 1e-4}).Estimate(arm, kinematics.JointVector{0}); !errors.Is(err, ErrEstimation) {
		t.Errorf("expected ErrEstimation, got %v", err)
	}
}

// probeFake counts evaluations, fails after a configurable number, and
// records Restore calls, standing in for a live probe-based model.
type probeFake struct {
	inner     kinematics.Model
	evals     int
	failAfter int
	restored  []kinematics.JointVector
}

func (f *probeFake) DOF() int     { return f.inner.DOF() }
func (f *probeFake) TaskDim() int { return f.inner.TaskDim() }

func (f *probeFake) EndEffector(q kinematics.JointVector) (kinematics.Position, error) {
	f.evals++
	if f.failAfter > 0 && f.evals > f.failAfter {
		return nil, errors.New("probe write refused")
	}
	return f.inner.EndEffector(q)
}

func (f *probeFake) Restore(q kinematics.JointVector) error {
	f.restored = append(f.restored, q.Clone())
	return nil
}

func TestEstimateRestoresBaseConfiguration(t *testing.T) {
	fake := &probeFake{inner: kinematics.NewTwoLink(0.5, 0.5)}
	q := kinematics.JointVector{0.3, 0.4}

	if _, err := (Estimator{Eps: 1e-4}).Estimate(fake, q); err != nil {
		t.Fatal(err)
	}
	if len(fake.restored) != 1 {
		t.Fatalf("expected exactly one restore, got %d", len(fake.restored))
	}
	if fake.restored[0][0] != q[0] || fake.restored[0][1] != q[1] {
		t.Errorf("restored to %v, expected %v", fake.restored[0], q)
	}
	// base + one per column
	if fake.evals != 3 {
		t.Errorf("expected 3 evaluations, got %d", fake.evals)
	}
}

func TestEstimateFailClosed(t *testing.T) {
	fake := &probeFake{inner: kinematics.NewTwoLink(0.5, 0.5), failAfter: 2}
	q := kinematics.JointVector{0.3, 0.4}

	j, err := Estimator{Eps: 1e-4}.Estimate(fake, q)
	if !errors.Is(err, ErrEstimation) {
		t.Fatalf("expected ErrEstimation, got %v", err)
	}
	if j != nil {
		t.Error("no partial Jacobian may escape a failed estimate")
	}
	if len(fake.restored) != 1 {
		t.Errorf("base configuration must be restored after a failed probe, restores=%d", len(fake.restored))
	}
}
