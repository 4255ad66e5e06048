package coppelia

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/armctl/internal/actuation"
	"github.com/san-kum/armctl/internal/kinematics"
)

// ArmConfig names the scene objects making up the manipulator.
type ArmConfig struct {
	// JointPaths are the controlled joints, base to tip, e.g.
	// "/Franka/panda_joint1".
	JointPaths []string

	// TipPath is the end-effector object. When it does not resolve,
	// TipCandidates are tried in order; robot models ship under varying
	// link names.
	TipPath       string
	TipCandidates []string

	// Stepping runs the session in explicit stepping mode so simulation
	// time only moves when the controller says so.
	Stepping bool
}

// Arm adapts a Session to the actuation boundary: joint reads/writes, tip
// position, and a simulated-time cursor.
type Arm struct {
	session  *Session
	joints   []int64
	tip      int64
	stepping bool
	stepSize float64
	now      float64
	log      *zap.SugaredLogger
}

var _ actuation.Actuator = (*Arm)(nil)

// NewArm resolves all configured handles and claims ownership of every
// joint. Resolution failures are fatal here, before any command is issued.
func NewArm(session *Session, cfg ArmConfig) (*Arm, error) {
	if len(cfg.JointPaths) == 0 {
		return nil, fmt.Errorf("coppelia: no joint paths configured")
	}

	joints := make([]int64, 0, len(cfg.JointPaths))
	for _, path := range cfg.JointPaths {
		h, err := session.ObjectHandle(path)
		if err != nil {
			return nil, err
		}
		if err := session.ClaimJoint(h); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		joints = append(joints, h)
	}

	tip, err := resolveTip(session, cfg)
	if err != nil {
		return nil, err
	}

	stepSize, err := session.SimulationTimeStep()
	if err != nil {
		return nil, err
	}
	if cfg.Stepping {
		if err := session.SetStepping(true); err != nil {
			return nil, err
		}
	}
	now, err := session.SimulationTime()
	if err != nil {
		return nil, err
	}

	return &Arm{
		session:  session,
		joints:   joints,
		tip:      tip,
		stepping: cfg.Stepping,
		stepSize: stepSize,
		now:      now,
		log:      zap.NewNop().Sugar(),
	}, nil
}

func resolveTip(session *Session, cfg ArmConfig) (int64, error) {
	paths := cfg.TipCandidates
	if cfg.TipPath != "" {
		paths = append([]string{cfg.TipPath}, paths...)
	}
	for _, path := range paths {
		h, err := session.ObjectHandle(path)
		if err == nil {
			return h, nil
		}
	}
	return 0, fmt.Errorf("%w: no end-effector tip among %v", ErrHandleNotFound, paths)
}

func (a *Arm) SetLogger(log *zap.SugaredLogger) { a.log = log }

// DOF is the number of controlled joints.
func (a *Arm) DOF() int { return len(a.joints) }

// Start begins the simulation and synchronizes the time cursor.
func (a *Arm) Start() error {
	if err := a.session.StartSimulation(); err != nil {
		return err
	}
	t, err := a.session.SimulationTime()
	if err != nil {
		return err
	}
	a.now = t
	a.log.Infow("simulation started", "t", t, "step", a.stepSize)
	return nil
}

func (a *Arm) Stop() error { return a.session.StopSimulation() }

func (a *Arm) JointAngles() (kinematics.JointVector, error) {
	q := make(kinematics.JointVector, len(a.joints))
	for i, h := range a.joints {
		pos, err := a.session.JointPosition(h)
		if err != nil {
			return nil, err
		}
		q[i] = pos
	}
	return q, nil
}

func (a *Arm) SetJointAngles(q kinematics.JointVector) error {
	if len(q) != len(a.joints) {
		return fmt.Errorf("coppelia: joint vector length %d != %d joints", len(q), len(a.joints))
	}
	for i, h := range a.joints {
		if err := a.session.SetJointPosition(h, q[i]); err != nil {
			return err
		}
	}
	// Direct kinematic writes only take effect at the next simulation
	// step in stepping mode.
	if a.stepping {
		if err := a.session.Step(); err != nil {
			return err
		}
		a.now += a.stepSize
	}
	return nil
}

// EndEffectorPosition projects the 3-D tip position onto the controlled
// x-y plane.
func (a *Arm) EndEffectorPosition() (kinematics.Position, error) {
	p, err := a.session.ObjectPosition(a.tip)
	if err != nil {
		return nil, err
	}
	if len(p) < 2 {
		return nil, fmt.Errorf("coppelia: tip position has %d components", len(p))
	}
	return kinematics.Position{p[0], p[1]}, nil
}

// AdvanceTime moves the simulated clock forward by dt. In stepping mode the
// session is stepped the matching number of times; otherwise the simulated
// clock is polled until it passes the target.
func (a *Arm) AdvanceTime(dt float64) error {
	if a.stepping {
		n := int(math.Round(dt / a.stepSize))
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			if err := a.session.Step(); err != nil {
				return err
			}
		}
		a.now += float64(n) * a.stepSize
		return nil
	}

	target := a.now + dt
	for {
		t, err := a.session.SimulationTime()
		if err != nil {
			return err
		}
		if t >= target {
			a.now = t
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (a *Arm) Time() float64 { return a.now }
