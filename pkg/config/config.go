package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/adaptmesh/quadforest/pkg/forest"
)

// Config holds all configuration of the inspection daemon. The library
// builders never read it; every library option is an explicit argument.
type Config struct {
	Server  ServerConfig
	REST    RESTConfig
	Forest  ForestConfig
	Virtual VirtualConfig
}

// ServerConfig holds gRPC health endpoint configuration
type ServerConfig struct {
	Host            string        // Server host (default: "0.0.0.0")
	Port            int           // gRPC port (default: 50061)
	ShutdownTimeout time.Duration // Graceful shutdown timeout
}

// Address returns the host:port the gRPC server listens on
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RESTConfig holds inspection API configuration
type RESTConfig struct {
	Enabled          bool
	Host             string
	Port             int
	CORSEnabled      bool
	CORSOrigins      []string
	AuthEnabled      bool
	JWTSecret        string
	PublicPaths      []string
	RateLimitEnabled bool
	RateLimitPerSec  float64
	RateLimitBurst   int
	RateLimitPerIP   bool
	RateLimitGlobal  bool
}

// ForestConfig describes the demo forest the daemon hosts
type ForestConfig struct {
	Dimension    int  // 2 or 3
	Level        int  // uniform refinement level
	RefineCenter bool // refine the element at the domain center once
	Ranks        int  // simulated rank count for the partition
	Rank         int  // the rank this daemon inspects
}

// VirtualConfig selects how the augmentation is built
type VirtualConfig struct {
	Connectivity       string // "face", "edge" (3D) or "full"
	MirrorConnectivity string // must not exceed Connectivity
	ComputeLevelLists  bool
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            50061,
			ShutdownTimeout: 10 * time.Second,
		},
		REST: RESTConfig{
			Enabled:          true,
			Host:             "0.0.0.0",
			Port:             8080,
			CORSEnabled:      false,
			AuthEnabled:      false,
			PublicPaths:      []string{"/v1/health", "/metrics"},
			RateLimitEnabled: false,
			RateLimitPerSec:  100,
			RateLimitBurst:   200,
			RateLimitPerIP:   true,
		},
		Forest: ForestConfig{
			Dimension:    2,
			Level:        3,
			RefineCenter: true,
			Ranks:        2,
			Rank:         0,
		},
		Virtual: VirtualConfig{
			Connectivity:       "face",
			MirrorConnectivity: "face",
			ComputeLevelLists:  true,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := Default()

	if host := os.Getenv("QUADFOREST_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("QUADFOREST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if timeout := os.Getenv("QUADFOREST_SHUTDOWN_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.ShutdownTimeout = t
		}
	}

	if enabled := os.Getenv("QUADFOREST_REST_ENABLED"); enabled == "false" {
		cfg.REST.Enabled = false
	}
	if host := os.Getenv("QUADFOREST_REST_HOST"); host != "" {
		cfg.REST.Host = host
	}
	if port := os.Getenv("QUADFOREST_REST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.REST.Port = p
		}
	}
	if auth := os.Getenv("QUADFOREST_REST_AUTH"); auth == "true" {
		cfg.REST.AuthEnabled = true
		cfg.REST.JWTSecret = os.Getenv("QUADFOREST_REST_JWT_SECRET")
	}
	if rl := os.Getenv("QUADFOREST_REST_RATE_LIMIT"); rl == "true" {
		cfg.REST.RateLimitEnabled = true
	}

	if dim := os.Getenv("QUADFOREST_DIMENSION"); dim != "" {
		if d, err := strconv.Atoi(dim); err == nil {
			cfg.Forest.Dimension = d
		}
	}
	if level := os.Getenv("QUADFOREST_LEVEL"); level != "" {
		if l, err := strconv.Atoi(level); err == nil {
			cfg.Forest.Level = l
		}
	}
	if refine := os.Getenv("QUADFOREST_REFINE_CENTER"); refine == "false" {
		cfg.Forest.RefineCenter = false
	}
	if ranks := os.Getenv("QUADFOREST_RANKS"); ranks != "" {
		if r, err := strconv.Atoi(ranks); err == nil {
			cfg.Forest.Ranks = r
		}
	}
	if rank := os.Getenv("QUADFOREST_RANK"); rank != "" {
		if r, err := strconv.Atoi(rank); err == nil {
			cfg.Forest.Rank = r
		}
	}

	if conn := os.Getenv("QUADFOREST_CONNECTIVITY"); conn != "" {
		cfg.Virtual.Connectivity = conn
	}
	if conn := os.Getenv("QUADFOREST_MIRROR_CONNECTIVITY"); conn != "" {
		cfg.Virtual.MirrorConnectivity = conn
	}
	if lists := os.Getenv("QUADFOREST_LEVEL_LISTS"); lists == "false" {
		cfg.Virtual.ComputeLevelLists = false
	}

	return cfg
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.REST.Enabled {
		if c.REST.Port <= 0 || c.REST.Port > 65535 {
			return fmt.Errorf("config: invalid REST port %d", c.REST.Port)
		}
		if c.REST.AuthEnabled && c.REST.JWTSecret == "" {
			return fmt.Errorf("config: auth enabled but no JWT secret configured")
		}
	}

	dim := forest.Dimension(c.Forest.Dimension)
	if !dim.Valid() {
		return fmt.Errorf("config: dimension must be 2 or 3, got %d", c.Forest.Dimension)
	}
	if c.Forest.Level < 0 || int8(c.Forest.Level) > dim.MaxLevel() {
		return fmt.Errorf("config: level %d out of range for %dD", c.Forest.Level, c.Forest.Dimension)
	}
	if c.Forest.Ranks < 1 {
		return fmt.Errorf("config: ranks must be positive, got %d", c.Forest.Ranks)
	}
	if c.Forest.Rank < 0 || c.Forest.Rank >= c.Forest.Ranks {
		return fmt.Errorf("config: rank %d out of range for %d ranks", c.Forest.Rank, c.Forest.Ranks)
	}

	btype, err := forest.ParseConnectivity(c.Virtual.Connectivity)
	if err != nil {
		return err
	}
	if !btype.Valid(dim) {
		return fmt.Errorf("config: connectivity %q not valid in %dD", c.Virtual.Connectivity, c.Forest.Dimension)
	}
	mirror, err := forest.ParseConnectivity(c.Virtual.MirrorConnectivity)
	if err != nil {
		return err
	}
	if mirror > btype {
		return fmt.Errorf("config: mirror connectivity %q exceeds %q", c.Virtual.MirrorConnectivity, c.Virtual.Connectivity)
	}
	return nil
}
