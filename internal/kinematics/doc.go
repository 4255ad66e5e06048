// Package kinematics defines the joint-space and task-space vector types
// shared across the controller, the forward-kinematics [Model] interface,
// and the analytic [TwoLink] planar arm used for testing and offline runs.
package kinematics
