// Package coppelia speaks the CoppeliaSim ZMQ Remote API: CBOR-encoded
// function calls over a ZeroMQ REQ socket. It is thin I/O glue; everything
// algorithmic lives upstream of the actuation boundary.
package coppelia

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"
)

// Joint mode constants from the remote API (sim.jointmode_*).
const (
	jointModeKinematic int64 = 0
	jointModeDynamic   int64 = 1
)

// worldFrame is the handle meaning "absolute/world coordinates"
// (sim.handle_world).
const worldFrame int64 = -1

// Session is one connection to a running CoppeliaSim instance with the ZMQ
// remote API server enabled (default port 23000). Calls are synchronous
// request/reply; a Session must not be shared across goroutines.
type Session struct {
	sock zmq4.Socket
	log  *zap.SugaredLogger
}

// Connect dials the remote API server and verifies it answers.
func Connect(ctx context.Context, host string, port int) (*Session, error) {
	sock := zmq4.NewReq(ctx)
	endpoint := fmt.Sprintf("tcp://%s:%d", host, port)
	if err := sock.Dial(endpoint); err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, endpoint, err)
	}

	s := &Session{sock: sock, log: zap.NewNop().Sugar()}
	if _, err := s.SimulationTime(); err != nil {
		sock.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) SetLogger(log *zap.SugaredLogger) { s.log = log }

func (s *Session) Close() error { return s.sock.Close() }

type request struct {
	Func string `cbor:"func"`
	Args []any  `cbor:"args"`
}

type response struct {
	Success bool              `cbor:"success"`
	Ret     []cbor.RawMessage `cbor:"ret"`
	Error   string            `cbor:"error"`
}

// call performs one remote function call, decoding up to len(out) returned
// values. Transport failures map to ErrConnection; remote-side failures
// surface with the server's message.
func (s *Session) call(fn string, args []any, out ...any) error {
	if args == nil {
		args = []any{}
	}
	payload, err := cbor.Marshal(request{Func: fn, Args: args})
	if err != nil {
		return fmt.Errorf("coppelia: encoding %s: %w", fn, err)
	}

	if err := s.sock.Send(zmq4.NewMsg(payload)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnection, fn, err)
	}
	msg, err := s.sock.Recv()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnection, fn, err)
	}

	var resp response
	if err := cbor.Unmarshal(msg.Bytes(), &resp); err != nil {
		return fmt.Errorf("%w: %s: malformed reply: %v", ErrConnection, fn, err)
	}
	if !resp.Success {
		return fmt.Errorf("coppelia: %s: %s", fn, resp.Error)
	}
	if len(resp.Ret) < len(out) {
		return fmt.Errorf("coppelia: %s returned %d values, want %d", fn, len(resp.Ret), len(out))
	}
	for i, dst := range out {
		if err := cbor.Unmarshal(resp.Ret[i], dst); err != nil {
			return fmt.Errorf("coppelia: %s: decoding return %d: %w", fn, i, err)
		}
	}
	s.log.Debugw("remote call", "func", fn)
	return nil
}

// ObjectHandle resolves a scene path like "/Franka/panda_joint1".
func (s *Session) ObjectHandle(path string) (int64, error) {
	var h int64
	if err := s.call("sim.getObject", []any{path}, &h); err != nil {
		if errors.Is(err, ErrConnection) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %q", ErrHandleNotFound, path)
	}
	return h, nil
}

func (s *Session) JointPosition(h int64) (float64, error) {
	var pos float64
	if err := s.call("sim.getJointPosition", []any{h}, &pos); err != nil {
		return 0, err
	}
	return pos, nil
}

// SetJointPosition writes the joint angle directly, bypassing the
// simulator's motor/target-tracking layer.
func (s *Session) SetJointPosition(h int64, pos float64) error {
	return s.call("sim.setJointPosition", []any{h, pos})
}

// ObjectPosition reads an object's position in world coordinates.
func (s *Session) ObjectPosition(h int64) ([]float64, error) {
	var p []float64
	if err := s.call("sim.getObjectPosition", []any{h, worldFrame}, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Session) StartSimulation() error { return s.call("sim.startSimulation", nil) }
func (s *Session) StopSimulation() error  { return s.call("sim.stopSimulation", nil) }

// SetStepping switches the session to explicit stepping: simulation time
// advances only on Step, keeping the loop cadence host-independent.
func (s *Session) SetStepping(on bool) error {
	return s.call("sim.setStepping", []any{on})
}

func (s *Session) Step() error { return s.call("sim.step", nil) }

func (s *Session) SimulationTime() (float64, error) {
	var t float64
	if err := s.call("sim.getSimulationTime", nil, &t); err != nil {
		return 0, err
	}
	return t, nil
}

func (s *Session) SimulationTimeStep() (float64, error) {
	var dt float64
	if err := s.call("sim.getSimulationTimeStep", nil, &dt); err != nil {
		return 0, err
	}
	return dt, nil
}

// JointMode reports the joint's control mode (sim.jointmode_*).
func (s *Session) JointMode(h int64) (int64, error) {
	var mode, options int64
	if err := s.call("sim.getJointMode", []any{h}, &mode, &options); err != nil {
		return 0, err
	}
	return mode, nil
}

// ClaimJoint verifies the joint accepts direct kinematic writes. Joints
// still owned by the simulator's dynamic/motor control would silently fight
// the controller, so setup fails fast instead.
func (s *Session) ClaimJoint(h int64) error {
	mode, err := s.JointMode(h)
	if err != nil {
		return err
	}
	if mode != jointModeKinematic {
		return fmt.Errorf("%w: joint %d has mode %d; disable its motor control and set it kinematic",
			ErrJointOwnership, h, mode)
	}
	return nil
}
