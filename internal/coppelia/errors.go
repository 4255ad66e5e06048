package coppelia

import "errors"

// Domain errors for the remote session.
var (
	// ErrConnection indicates the simulator session is unreachable or was
	// lost mid-call. Fatal: the control loop aborts, no retry.
	ErrConnection = errors.New("coppelia: session unavailable")

	// ErrHandleNotFound indicates a configured object path does not
	// resolve in the scene. Fatal at setup, before the loop starts.
	ErrHandleNotFound = errors.New("coppelia: object not found")

	// ErrJointOwnership indicates a joint is still under the simulator's
	// built-in motor control and cannot be commanded kinematically.
	ErrJointOwnership = errors.New("coppelia: joint under built-in control")
)
