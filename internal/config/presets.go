package config

func preset(mutate func(*Config)) *Config {
	cfg := DefaultConfig()
	mutate(cfg)
	return cfg
}

// Presets are ready-made runs keyed by name. Each starts from the defaults
// so only the interesting knobs show up here.
var Presets = map[string]*Config{
	"circle": preset(func(c *Config) {}),
	"circle-slow": preset(func(c *Config) {
		c.Trajectory.Frequency = 0.05
		c.Loop.Duration = 20.0
	}),
	"circle-wide": preset(func(c *Config) {
		c.Trajectory.Radius = 0.1
		c.Loop.Duration = 10.0
	}),
	"hold": preset(func(c *Config) {
		c.Trajectory.Shape = "static"
		c.Loop.Duration = 4.0
		c.Loop.ConvergeWindow = 10
	}),
	"reach": preset(func(c *Config) {
		c.Trajectory.Shape = "line"
		c.Trajectory.TargetX = -0.05
		c.Trajectory.TargetY = -0.08
		c.Trajectory.TravelTime = 4.0
		c.Loop.Duration = 6.0
	}),
	"stiff": preset(func(c *Config) {
		c.Loop.Lambda = 0.3
		c.Loop.MaxStep = 0.02
		c.Loop.Duration = 12.0
	}),
}

// GetPreset returns a copy so flag overrides never touch the table.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
