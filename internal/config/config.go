// Package config holds the run configuration: simulator session, scene
// object paths, control-loop parameters and the desired trajectory.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/armctl/internal/kinematics"
	"github.com/san-kum/armctl/internal/trajectory"
)

const (
	DefaultHost      = "localhost"
	DefaultPort      = 23000
	DefaultEps       = 1e-4
	DefaultLambda    = 0.1
	DefaultPeriod    = 0.05
	DefaultDuration  = 8.0
	DefaultMaxStep   = 0.05
	DefaultTolerance = 0.01
	DefaultRadius    = 0.05
	DefaultFrequency = 0.1
)

type Config struct {
	Session    SessionConfig    `yaml:"session"`
	Arm        ArmConfig        `yaml:"arm"`
	Loop       LoopConfig       `yaml:"loop"`
	Trajectory TrajectoryConfig `yaml:"trajectory"`
}

type SessionConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Stepping bool   `yaml:"stepping"`
}

type ArmConfig struct {
	JointPaths    []string `yaml:"joint_paths"`
	TipPath       string   `yaml:"tip_path"`
	TipCandidates []string `yaml:"tip_candidates"`

	// Links and InitAngles parameterize the analytic planar arm used by
	// demo and watch runs, which need no simulator.
	Links      []float64 `yaml:"links"`
	InitAngles []float64 `yaml:"init_angles"`
}

type LoopConfig struct {
	Eps            float64 `yaml:"eps"`
	Lambda         float64 `yaml:"lambda"`
	Period         float64 `yaml:"period"`
	Duration       float64 `yaml:"duration"`
	MaxStep        float64 `yaml:"max_step"`
	MaxNorm        float64 `yaml:"max_norm"`
	Tolerance      float64 `yaml:"tolerance"`
	ConvergeWindow int     `yaml:"converge_window"`
}

type TrajectoryConfig struct {
	// Shape is one of "circle", "line" or "static".
	Shape string `yaml:"shape"`

	// Relative interprets center/target as offsets from the initial
	// end-effector position.
	Relative bool `yaml:"relative"`

	CenterX   float64 `yaml:"center_x"`
	CenterY   float64 `yaml:"center_y"`
	Radius    float64 `yaml:"radius"`
	Frequency float64 `yaml:"frequency"`

	TargetX float64 `yaml:"target_x"`
	TargetY float64 `yaml:"target_y"`

	// TravelTime is the line shape's interpolation time in simulated
	// seconds.
	TravelTime float64 `yaml:"travel_time"`
}

func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			Host:     DefaultHost,
			Port:     DefaultPort,
			Stepping: true,
		},
		Arm: ArmConfig{
			JointPaths: []string{
				"/Franka/panda_joint1",
				"/Franka/panda_joint2",
				"/Franka/panda_joint3",
				"/Franka/panda_joint4",
				"/Franka/panda_joint5",
				"/Franka/panda_joint6",
				"/Franka/panda_joint7",
			},
			TipPath: "/Franka/panda_tip",
			TipCandidates: []string{
				"/Franka/panda_hand",
				"/Franka/panda_link8",
				"/Franka/panda_link7",
			},
			Links:      []float64{0.5, 0.5},
			InitAngles: []float64{0.3, 0.6},
		},
		Loop: LoopConfig{
			Eps:       DefaultEps,
			Lambda:    DefaultLambda,
			Period:    DefaultPeriod,
			Duration:  DefaultDuration,
			MaxStep:   DefaultMaxStep,
			Tolerance: DefaultTolerance,
		},
		Trajectory: TrajectoryConfig{
			Shape:     "circle",
			Relative:  true,
			Radius:    DefaultRadius,
			Frequency: DefaultFrequency,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Build turns the trajectory section into a waypoint function. origin is
// the end-effector position at loop start, used when Relative is set.
func (t TrajectoryConfig) Build(origin kinematics.Position) (trajectory.Trajectory, error) {
	ox, oy := 0.0, 0.0
	if t.Relative {
		if len(origin) < 2 {
			return nil, fmt.Errorf("config: relative trajectory needs an origin")
		}
		ox, oy = origin[0], origin[1]
	}

	switch t.Shape {
	case "circle", "":
		return trajectory.Circle(kinematics.Position{ox + t.CenterX, oy + t.CenterY}, t.Radius, t.Frequency), nil
	case "static":
		return trajectory.Static(kinematics.Position{ox + t.TargetX, oy + t.TargetY}), nil
	case "line":
		if len(origin) < 2 {
			return nil, fmt.Errorf("config: line trajectory needs an origin")
		}
		from := kinematics.Position{origin[0], origin[1]}
		to := kinematics.Position{ox + t.TargetX, oy + t.TargetY}
		return trajectory.Line(from, to, t.TravelTime), nil
	default:
		return nil, fmt.Errorf("config: unknown trajectory shape: %s", t.Shape)
	}
}
