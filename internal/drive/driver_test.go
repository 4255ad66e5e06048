package drive

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/armctl/internal/actuation"
	"github.com/san-kum/armctl/internal/jacobian"
	"github.com/san-kum/armctl/internal/kinematics"
	"github.com/san-kum/armctl/internal/solver"
	"github.com/san-kum/armctl/internal/trajectory"
)

var testArm = kinematics.NewTwoLink(0.5, 0.5)

func testConfig() Config {
	return Config{
		Period:    0.05,
		Duration:  8.0,
		Eps:       1e-4,
		Lambda:    0.05,
		Limits:    solver.Limits{MaxStep: 0.05},
		Tolerance: 0.01,
	}
}

// offsetTarget returns a static target a fixed distance from the arm's
// current end-effector position.
func offsetTarget(t *testing.T, q0 kinematics.JointVector, dist float64) kinematics.Position {
	t.Helper()
	p0, err := testArm.EndEffector(q0)
	if err != nil {
		t.Fatal(err)
	}
	return kinematics.Position{p0[0] - dist*0.6, p0[1] - dist*0.8}
}

func TestRunConvergesOnStaticTarget(t *testing.T) {
	q0 := kinematics.JointVector{0.3, 0.6}
	fake := actuation.NewFake(testArm, q0)
	target := offsetTarget(t, q0, 0.1)

	d := New(testConfig(), fake, trajectory.Static(target))
	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Status != TimedOut {
		t.Errorf("fixed-duration run should time out as planned, got %s", res.Status)
	}
	if res.FinalError >= 0.01 {
		t.Errorf("final tracking error %.6f, expected < 0.01", res.FinalError)
	}
	if !res.Passed {
		t.Error("run should pass against the 0.01 tolerance")
	}
	if res.MaxError < 0.09 {
		t.Errorf("max error %.6f should reflect the initial 0.1 offset", res.MaxError)
	}
}

func TestRunConvergesEarlyWithWindow(t *testing.T) {
	q0 := kinematics.JointVector{0.3, 0.6}
	fake := actuation.NewFake(testArm, q0)
	target := offsetTarget(t, q0, 0.1)

	cfg := testConfig()
	cfg.ConvergeWindow = 5
	d := New(cfg, fake, trajectory.Static(target))
	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Status != Converged {
		t.Fatalf("expected early convergence, got %s", res.Status)
	}
	if res.Records[res.Cycles-1].Time >= cfg.Duration-cfg.Period {
		t.Error("convergence should fire well before the timeout")
	}
}

func TestRunTracksCircle(t *testing.T) {
	q0 := kinematics.JointVector{0.3, 0.6}
	fake := actuation.NewFake(testArm, q0)
	p0, _ := testArm.EndEffector(q0)

	d := New(testConfig(), fake, trajectory.Circle(p0, 0.05, 0.1))
	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Status != TimedOut {
		t.Fatalf("got %s", res.Status)
	}
	// After the initial transient the tracker should stay close.
	for _, rec := range res.Records[res.Cycles/2:] {
		if rec.Error > 0.02 {
			t.Fatalf("t=%.2f: tracking error %.4f too large", rec.Time, rec.Error)
		}
	}
}

func TestRunCycleCount(t *testing.T) {
	q0 := kinematics.JointVector{0.3, 0.6}
	fake := actuation.NewFake(testArm, q0)

	cfg := testConfig()
	cfg.Period = 0.0625 // exactly representable, exact cycle count
	cfg.Duration = 0.5
	d := New(cfg, fake, trajectory.Static(offsetTarget(t, q0, 0.05)))
	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Cycles != 8 {
		t.Errorf("expected 8 cycles, got %d", res.Cycles)
	}
}

func TestRunAbortsOnConnectionLoss(t *testing.T) {
	boom := errors.New("connection lost")
	q0 := kinematics.JointVector{0.3, 0.6}
	fake := actuation.NewFake(testArm, q0)
	// Fail mid-run: each cycle issues DOF probe writes, one restore and
	// one commit; 20 successful writes is a few cycles in.
	fake.FailAfter(20, boom)

	d := New(testConfig(), fake, trajectory.Static(offsetTarget(t, q0, 0.1)))
	res, err := d.Run(context.Background())
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("error should wrap the connection failure, got %v", err)
	}
	if res.Status != Aborted {
		t.Fatalf("expected aborted, got %s", res.Status)
	}
	if !errors.Is(res.Err, boom) {
		t.Error("result must carry the terminal error")
	}
	if res.Passed {
		t.Error("aborted run must not pass")
	}

	// Fail-stop: no further writes after the abort.
	writes := len(fake.Writes())
	if _, done, _ := d.StepCycle(); !done {
		t.Error("stepping an aborted driver must be a no-op")
	}
	if len(fake.Writes()) != writes {
		t.Error("aborted driver issued further writes")
	}
}

func TestRunAbortsOnEstimationFailure(t *testing.T) {
	boom := errors.New("probe refused")
	q0 := kinematics.JointVector{0.3, 0.6}
	fake := actuation.NewFake(testArm, q0)
	// First cycle: the commit after probing never happens if a probe
	// write fails. Fail on the very first probe write.
	fake.FailAfter(0, boom)

	d := New(testConfig(), fake, trajectory.Static(offsetTarget(t, q0, 0.1)))
	res, err := d.Run(context.Background())
	if !errors.Is(err, jacobian.ErrEstimation) {
		t.Fatalf("expected ErrEstimation, got %v", err)
	}
	if res.Status != Aborted {
		t.Fatalf("got %s", res.Status)
	}
	if res.Cycles != 0 {
		t.Errorf("no cycle may be recorded after a failed estimate, got %d", res.Cycles)
	}
	if len(fake.Writes()) != 0 {
		t.Error("no joint update may be committed after a failed estimate")
	}
}

func TestRunCancellation(t *testing.T) {
	q0 := kinematics.JointVector{0.3, 0.6}
	fake := actuation.NewFake(testArm, q0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(testConfig(), fake, trajectory.Static(offsetTarget(t, q0, 0.1)))
	res, err := d.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Status != Aborted {
		t.Errorf("got %s", res.Status)
	}
}

func TestRunDeterministic(t *testing.T) {
	run := func() *Result {
		q0 := kinematics.JointVector{0.3, 0.6}
		fake := actuation.NewFake(testArm, q0)
		p0, _ := testArm.EndEffector(q0)
		d := New(testConfig(), fake, trajectory.Circle(p0, 0.05, 0.1))
		res, err := d.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	a, b := run(), run()
	if a.Cycles != b.Cycles {
		t.Fatalf("cycle counts differ: %d vs %d", a.Cycles, b.Cycles)
	}
	for i := range a.Records {
		ra, rb := a.Records[i], b.Records[i]
		if ra.Time != rb.Time || ra.Error != rb.Error || ra.StepNorm != rb.StepNorm || ra.Clamped != rb.Clamped {
			t.Fatalf("cycle %d differs: %+v vs %+v", i, ra, rb)
		}
		for k := range ra.Desired {
			if ra.Desired[k] != rb.Desired[k] || ra.Actual[k] != rb.Actual[k] {
				t.Fatalf("cycle %d positions differ", i)
			}
		}
	}
}

func TestCommittedUpdatesRespectStepLimits(t *testing.T) {
	q0 := kinematics.JointVector{0.3, 0.6}
	fake := actuation.NewFake(testArm, q0)

	cfg := testConfig()
	cfg.Limits = solver.Limits{MaxStep: 0.02}
	d := New(cfg, fake, trajectory.Static(offsetTarget(t, q0, 0.1)))
	// Analytic model: every actuator write is a committed update, so the
	// write log diffs are exactly the Δq sequence.
	d.SetModel(testArm)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	prev := q0
	for n, w := range fake.Writes() {
		for i := range w {
			if step := math.Abs(w[i] - prev[i]); step > cfg.Limits.MaxStep+1e-12 {
				t.Fatalf("write %d joint %d: |Δq| = %.6f exceeds limit %.3f", n, i, step, cfg.Limits.MaxStep)
			}
		}
		prev = w
	}
}

func TestConfigValidation(t *testing.T) {
	q0 := kinematics.JointVector{0.3, 0.6}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero period", func(c *Config) { c.Period = 0 }},
		{"negative duration", func(c *Config) { c.Duration = -1 }},
		{"zero eps", func(c *Config) { c.Eps = 0 }},
		{"negative lambda", func(c *Config) { c.Lambda = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			fake := actuation.NewFake(testArm, q0)
			d := New(cfg, fake, trajectory.Static(offsetTarget(t, q0, 0.1)))
			if _, err := d.Run(context.Background()); err == nil {
				t.Error("expected config validation error")
			}
		})
	}
}

func TestBeginTwice(t *testing.T) {
	q0 := kinematics.JointVector{0.3, 0.6}
	fake := actuation.NewFake(testArm, q0)
	d := New(testConfig(), fake, trajectory.Static(offsetTarget(t, q0, 0.1)))
	if err := d.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := d.Begin(); err == nil {
		t.Error("second Begin must fail")
	}
}
