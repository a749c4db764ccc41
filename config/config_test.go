package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"ppqn too low", func(c *Config) { c.Transport.PPQN = 16 }},
		{"ppqn too high", func(c *Config) { c.Transport.PPQN = 40000 }},
		{"bpm below range", func(c *Config) { c.Transport.BPM = 1 }},
		{"bpm above range", func(c *Config) { c.Transport.BPM = 1000 }},
		{"inverted bpm range", func(c *Config) { c.Transport.MinBPM = 300; c.Transport.MaxBPM = 100 }},
		{"zero beats per bar", func(c *Config) { c.Transport.BeatsPerBar = 0 }},
		{"loop right before left", func(c *Config) { c.Transport.LeftTick = 500; c.Transport.RightTick = 400 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted a bad config")
			}
		})
	}
}
