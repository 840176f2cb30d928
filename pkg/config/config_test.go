package config

import (
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
	if cfg.Server.Port != 50061 {
		t.Errorf("default server port = %d", cfg.Server.Port)
	}
	if !cfg.Virtual.ComputeLevelLists {
		t.Error("level lists should default on")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("QUADFOREST_PORT", "50123")
	t.Setenv("QUADFOREST_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("QUADFOREST_DIMENSION", "3")
	t.Setenv("QUADFOREST_LEVEL", "2")
	t.Setenv("QUADFOREST_CONNECTIVITY", "edge")
	t.Setenv("QUADFOREST_MIRROR_CONNECTIVITY", "face")
	t.Setenv("QUADFOREST_LEVEL_LISTS", "false")
	t.Setenv("QUADFOREST_REST_ENABLED", "false")

	cfg := LoadFromEnv()
	if cfg.Server.Port != 50123 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Forest.Dimension != 3 || cfg.Forest.Level != 2 {
		t.Errorf("forest = %+v", cfg.Forest)
	}
	if cfg.Virtual.Connectivity != "edge" || cfg.Virtual.ComputeLevelLists {
		t.Errorf("virtual = %+v", cfg.Virtual)
	}
	if cfg.REST.Enabled {
		t.Error("REST should be disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
		{"bad dimension", func(c *Config) { c.Forest.Dimension = 4 }},
		{"bad level", func(c *Config) { c.Forest.Level = 99 }},
		{"bad rank", func(c *Config) { c.Forest.Rank = 5 }},
		{"edge in 2d", func(c *Config) { c.Virtual.Connectivity = "edge"; c.Virtual.MirrorConnectivity = "edge" }},
		{"unknown connectivity", func(c *Config) { c.Virtual.Connectivity = "diagonal" }},
		{"mirror exceeds", func(c *Config) { c.Virtual.MirrorConnectivity = "full" }},
		{"auth without secret", func(c *Config) { c.REST.AuthEnabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
