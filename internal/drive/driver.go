// Package drive runs the closed-loop Jacobian controller: a fixed-period
// sense → estimate → solve → actuate → advance-time cycle against an
// actuation.Actuator, sequenced entirely on simulation time.
package drive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/armctl/internal/actuation"
	"github.com/san-kum/armctl/internal/jacobian"
	"github.com/san-kum/armctl/internal/kinematics"
	"github.com/san-kum/armctl/internal/solver"
	"github.com/san-kum/armctl/internal/trajectory"
)

// Config is the immutable per-run configuration handed to the Driver at
// construction. No process-wide state is consulted.
type Config struct {
	Period   float64 // simulated seconds per control cycle
	Duration float64 // total simulated run time
	Eps      float64 // finite-difference perturbation, radians
	Lambda   float64 // damped least-squares damping
	Limits   solver.Limits

	// Tolerance is the tracking-error threshold used both for the final
	// pass/fail verdict and, together with ConvergeWindow, for early
	// exit.
	Tolerance float64

	// ConvergeWindow is the number of consecutive cycles the error must
	// stay below Tolerance to declare convergence. Zero disables early
	// exit: the run ends by timeout only.
	ConvergeWindow int
}

func (c Config) validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("drive: period must be positive, got %g", c.Period)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("drive: duration must be positive, got %g", c.Duration)
	}
	if c.Eps <= 0 {
		return fmt.Errorf("drive: eps must be positive, got %g", c.Eps)
	}
	if c.Lambda < 0 {
		return fmt.Errorf("drive: lambda must be >= 0, got %g", c.Lambda)
	}
	return nil
}

// Driver owns the control loop. It is the only component holding joint or
// position state within a cycle, and nothing it holds survives the run.
// Drivers are single-use: construct, Run, read the Result.
type Driver struct {
	cfg   Config
	act   actuation.Actuator
	traj  trajectory.Trajectory
	model kinematics.Model
	est   jacobian.Estimator
	dls   solver.DLS
	log   *zap.SugaredLogger

	status  Status
	start   float64
	records []CycleRecord
	runErr  error
	streak  int
}

func New(cfg Config, act actuation.Actuator, traj trajectory.Trajectory) *Driver {
	return &Driver{
		cfg:    cfg,
		act:    act,
		traj:   traj,
		est:    jacobian.Estimator{Eps: cfg.Eps},
		dls:    solver.DLS{Lambda: cfg.Lambda, Limits: cfg.Limits},
		log:    zap.NewNop().Sugar(),
		status: Idle,
	}
}

// SetLogger replaces the no-op default.
func (d *Driver) SetLogger(log *zap.SugaredLogger) { d.log = log }

// SetModel supplies an explicit kinematic model for Jacobian estimation.
// Without one, the driver probes the actuator itself: each perturbation is
// written to the live joints, evaluated, and rolled back.
func (d *Driver) SetModel(m kinematics.Model) { d.model = m }

// Status reports the current loop state.
func (d *Driver) Status() Status { return d.status }

// Begin transitions Idle → Running, recording the loop start time and
// sizing the Jacobian from the initial state.
func (d *Driver) Begin() error {
	if d.status != Idle {
		return fmt.Errorf("drive: cannot begin from state %s", d.status)
	}
	if err := d.cfg.validate(); err != nil {
		d.fail(err)
		return err
	}

	q, err := d.act.JointAngles()
	if err != nil {
		err = fmt.Errorf("drive: reading initial joint state: %w", err)
		d.fail(err)
		return err
	}
	if d.model == nil {
		d.model = actuation.Probe(d.act, len(q), len(d.traj(0)))
	}
	if d.model.DOF() != len(q) {
		err = fmt.Errorf("drive: model DOF %d != manipulator joints %d", d.model.DOF(), len(q))
		d.fail(err)
		return err
	}

	d.start = d.act.Time()
	d.status = Running
	d.log.Debugw("control loop started", "t0", d.start, "dof", len(q))
	return nil
}

// StepCycle executes one full control cycle. A cycle either completes in
// its entirety (read → estimate → solve → write → advance) or the run
// aborts; the actuator is never left mid-write. done reports that a
// terminal state was reached, either by this call or before it.
func (d *Driver) StepCycle() (CycleRecord, bool, error) {
	if d.status != Running {
		return CycleRecord{}, true, d.runErr
	}

	elapsed := d.act.Time() - d.start
	if elapsed >= d.cfg.Duration {
		d.status = TimedOut
		d.log.Debugw("run timed out as planned", "elapsed", elapsed)
		return CycleRecord{}, true, nil
	}

	desired := d.traj(elapsed)

	q, err := d.act.JointAngles()
	if err != nil {
		return CycleRecord{}, true, d.fail(fmt.Errorf("drive: reading joints: %w", err))
	}
	actual, err := d.act.EndEffectorPosition()
	if err != nil {
		return CycleRecord{}, true, d.fail(fmt.Errorf("drive: reading end effector: %w", err))
	}

	dx := desired.Sub(actual)

	j, err := d.est.Estimate(d.model, q)
	if err != nil {
		return CycleRecord{}, true, d.fail(err)
	}

	dq, clamped, err := d.dls.Solve(j, dx)
	if err != nil {
		return CycleRecord{}, true, d.fail(err)
	}

	if err := d.act.SetJointAngles(q.Add(dq)); err != nil {
		return CycleRecord{}, true, d.fail(fmt.Errorf("drive: committing joint update: %w", err))
	}
	if err := d.act.AdvanceTime(d.cfg.Period); err != nil {
		return CycleRecord{}, true, d.fail(fmt.Errorf("drive: advancing simulation time: %w", err))
	}

	rec := CycleRecord{
		Time:     elapsed,
		Desired:  desired.Clone(),
		Actual:   actual.Clone(),
		Error:    dx.Norm(),
		StepNorm: dq.Norm(),
		Clamped:  clamped,
	}
	d.records = append(d.records, rec)
	d.log.Debugw("cycle",
		"t", rec.Time, "err", rec.Error, "dq", rec.StepNorm, "clamped", rec.Clamped)

	if d.cfg.ConvergeWindow > 0 {
		if rec.Error < d.cfg.Tolerance {
			d.streak++
			if d.streak >= d.cfg.ConvergeWindow {
				d.status = Converged
				d.log.Debugw("converged early", "t", rec.Time, "err", rec.Error)
				return rec, true, nil
			}
		} else {
			d.streak = 0
		}
	}
	return rec, false, nil
}

// Run drives the loop to a terminal state. Cancellation is cooperative,
// checked between cycles; a cancelled run ends Aborted without issuing
// further commands.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	if err := d.Begin(); err != nil {
		return d.Finish(), err
	}
	for d.status == Running {
		select {
		case <-ctx.Done():
			return d.Finish(), d.fail(fmt.Errorf("drive: cancelled: %w", ctx.Err()))
		default:
		}
		if _, done, err := d.StepCycle(); done && err != nil {
			return d.Finish(), err
		}
	}
	return d.Finish(), nil
}

func (d *Driver) fail(err error) error {
	d.status = Aborted
	d.runErr = err
	d.log.Warnw("run aborted", "error", err)
	return err
}
