package drive

import (
	"github.com/montanaflynn/stats"

	"github.com/san-kum/armctl/internal/kinematics"
)

// Status is the control loop state. Terminal states distinguish a run that
// ended on schedule from one that converged early or died on an error.
type Status int

const (
	Idle Status = iota
	Running
	Converged
	TimedOut
	Aborted
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Converged:
		return "converged"
	case TimedOut:
		return "timed-out"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Terminal reports whether the loop has stopped.
func (s Status) Terminal() bool {
	return s == Converged || s == TimedOut || s == Aborted
}

// CycleRecord is the append-only log entry for one control cycle.
type CycleRecord struct {
	Time     float64             // elapsed simulation time at cycle start
	Desired  kinematics.Position // trajectory target
	Actual   kinematics.Position // sensed end-effector position
	Error    float64             // ‖desired − actual‖
	StepNorm float64             // ‖Δq‖ as committed
	Clamped  bool                // step limits bounded the raw solve
}

// Result is the acceptance artifact of a run: the cycle log plus summary
// statistics and the pass/fail verdict.
type Result struct {
	Status  Status
	Records []CycleRecord
	Err     error // set when Status == Aborted

	Cycles        int
	MeanAbsError  float64
	MaxError      float64
	FinalError    float64
	MeanStepNorm  float64
	ClampedCycles int

	// Passed is the final tracking error checked against the configured
	// tolerance. Only meaningful for runs that were not aborted.
	Passed bool
}

// Finish computes the summary over the accumulated records and returns the
// Result. Records are handed over, not copied; the driver is done.
func (d *Driver) Finish() *Result {
	res := &Result{
		Status:  d.status,
		Records: d.records,
		Err:     d.runErr,
		Cycles:  len(d.records),
	}
	if len(d.records) == 0 {
		return res
	}

	errs := make([]float64, len(d.records))
	steps := make([]float64, len(d.records))
	for i, r := range d.records {
		errs[i] = r.Error
		steps[i] = r.StepNorm
		if r.Clamped {
			res.ClampedCycles++
		}
	}

	res.MeanAbsError, _ = stats.Mean(errs)
	res.MaxError, _ = stats.Max(errs)
	res.MeanStepNorm, _ = stats.Mean(steps)
	res.FinalError = errs[len(errs)-1]
	res.Passed = d.status != Aborted && res.FinalError <= d.cfg.Tolerance
	return res
}
