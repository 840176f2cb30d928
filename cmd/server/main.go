package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/adaptmesh/quadforest/pkg/api/rest"
	"github.com/adaptmesh/quadforest/pkg/api/rest/middleware"
	"github.com/adaptmesh/quadforest/pkg/config"
	"github.com/adaptmesh/quadforest/pkg/forest"
	"github.com/adaptmesh/quadforest/pkg/mesh"
	"github.com/adaptmesh/quadforest/pkg/observability"
	"github.com/adaptmesh/quadforest/pkg/virtual"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version and exit")
		host        = flag.String("host", "", "REST host (overrides config/env)")
		port        = flag.Int("port", 0, "REST port (overrides config/env)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Quadforest inspection server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	printBanner()

	cfg := config.LoadFromEnv()
	if *host != "" {
		cfg.REST.Host = *host
	}
	if *port > 0 {
		cfg.REST.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := observability.NewDefaultLogger().WithRank(cfg.Forest.Rank)
	metrics := observability.NewMetrics()

	state, err := buildState(cfg, logger, metrics)
	if err != nil {
		log.Fatalf("Failed to build forest state: %v", err)
	}

	printStartupInfo(cfg, state)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	// gRPC health endpoint
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	listener, err := net.Listen("tcp", cfg.Server.Address())
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.Server.Address(), err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Starting gRPC health server on %s", cfg.Server.Address())
		if err := grpcServer.Serve(listener); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	var restServer *rest.Server
	if cfg.REST.Enabled {
		restServer = rest.NewServer(rest.Config{
			Host:        cfg.REST.Host,
			Port:        cfg.REST.Port,
			CORSEnabled: cfg.REST.CORSEnabled,
			CORSOrigins: cfg.REST.CORSOrigins,
			Auth: middleware.AuthConfig{
				Enabled:     cfg.REST.AuthEnabled,
				JWTSecret:   cfg.REST.JWTSecret,
				PublicPaths: cfg.REST.PublicPaths,
			},
			RateLimit: middleware.RateLimitConfig{
				Enabled:        cfg.REST.RateLimitEnabled,
				RequestsPerSec: cfg.REST.RateLimitPerSec,
				Burst:          cfg.REST.RateLimitBurst,
				PerIP:          cfg.REST.RateLimitPerIP,
				GlobalLimit:    cfg.REST.RateLimitGlobal,
			},
		}, state)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := restServer.Start(); err != nil {
				errChan <- fmt.Errorf("REST server error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	log.Println("Servers are ready. Press Ctrl+C to stop.")
	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-errChan:
		log.Printf("Server error: %v", err)
	}

	log.Println("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if restServer != nil {
		if err := restServer.Stop(ctx); err != nil {
			log.Printf("Error stopping REST server: %v", err)
		}
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer.GracefulStop()

	wg.Wait()
	log.Println("Servers stopped.")
}

// buildState constructs the demo forest this daemon inspects: a uniform
// forest, optionally refined once at the domain center, partitioned across
// the configured ranks, with mesh, augmentation and mirror assignment for
// the configured rank.
func buildState(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (*rest.State, error) {
	dim := forest.Dimension(cfg.Forest.Dimension)
	btype, err := forest.ParseConnectivity(cfg.Virtual.Connectivity)
	if err != nil {
		return nil, err
	}
	btypeMirror, err := forest.ParseConnectivity(cfg.Virtual.MirrorConnectivity)
	if err != nil {
		return nil, err
	}

	global := forest.NewUniform(dim, int8(cfg.Forest.Level))
	if cfg.Forest.RefineCenter {
		center := dim.RootLength() / 2
		global.Refine(func(q forest.Quadrant) bool {
			return q.X == center && q.Y == center && (dim == forest.Dim2 || q.Z == center)
		})
	}
	parts := global.Partition(cfg.Forest.Ranks)

	ghost, m, err := mesh.Build(global, parts, cfg.Forest.Rank, btype)
	if err != nil {
		return nil, err
	}

	var aug *virtual.Augmentation
	var mirrors *virtual.VirtualGhost
	local := parts[cfg.Forest.Rank]
	err = logger.LogOperation("build augmentation", func() error {
		start := time.Now()
		aug, err = virtual.NewExt(local, ghost, m, btype, cfg.Virtual.ComputeLevelLists)
		if err != nil {
			metrics.BuildErrors.WithLabelValues("precondition").Inc()
			return err
		}
		metrics.RecordBuild(btype.String(), time.Since(start), aug.MemoryUsed())
		mirrors, err = virtual.NewGhost(local, ghost, m, aug, btypeMirror)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.LocalQuadrants.Set(float64(m.LocalCount))
	metrics.GhostQuadrants.Set(float64(m.GhostCount))
	hosts := 0
	for qid := int32(0); qid < aug.LocalCount; qid++ {
		if aug.HasVirtuals(qid) {
			hosts++
		}
	}
	metrics.LocalVirtualHosts.Set(float64(hosts))
	ghostHosts := 0
	for gid := int32(0); gid < aug.GhostCount; gid++ {
		if _, ok := aug.GhostVirtualIndex(gid); ok {
			ghostHosts++
		}
	}
	metrics.GhostVirtualHosts.Set(float64(ghostHosts))
	metrics.MirrorSlots.Set(float64(len(mirrors.MirrorProcVirtuals)))
	flagged := 0
	for _, f := range mirrors.MirrorProcVirtuals {
		if f {
			flagged++
		}
	}
	metrics.MirrorSlotsFlagged.Set(float64(flagged))

	return &rest.State{
		Forest:    local,
		Ghost:     ghost,
		Mesh:      m,
		Aug:       aug,
		Mirrors:   mirrors,
		Logger:    logger,
		Metrics:   metrics,
		StartTime: time.Now(),
	}, nil
}

func printBanner() {
	fmt.Printf(`
   ___                  _  __                     _
  / _ \ _   _  __ _  __| |/ _| ___  _ __ ___  ___| |_
 | | | | | | |/ _' |/ _' | |_ / _ \| '__/ _ \/ __| __|
 | |_| | |_| | (_| | (_| |  _| (_) | | |  __/\__ \ |_
  \__\_\\__,_|\__,_|\__,_|_|  \___/|_|  \___||___/\__|

  Adaptive forest inspection server v%s (commit: %s)

`, version, commit)
}

func printStartupInfo(cfg *config.Config, state *rest.State) {
	fmt.Println("Forest:")
	fmt.Printf("  dimension:     %dD\n", cfg.Forest.Dimension)
	fmt.Printf("  level:         %d\n", cfg.Forest.Level)
	fmt.Printf("  rank:          %d of %d\n", cfg.Forest.Rank, cfg.Forest.Ranks)
	fmt.Printf("  local/ghost:   %d / %d quadrants\n", state.Mesh.LocalCount, state.Mesh.GhostCount)
	fmt.Println("Virtual layer:")
	fmt.Printf("  connectivity:  %s (mirror: %s)\n", cfg.Virtual.Connectivity, cfg.Virtual.MirrorConnectivity)
	fmt.Printf("  level lists:   %v\n", cfg.Virtual.ComputeLevelLists)
	fmt.Printf("  memory:        %d bytes\n", state.Aug.MemoryUsed())
	fmt.Println("Endpoints:")
	fmt.Printf("  gRPC health:   %s\n", cfg.Server.Address())
	if cfg.REST.Enabled {
		fmt.Printf("  REST:          http://%s:%d/v1/stats\n", cfg.REST.Host, cfg.REST.Port)
	}
	fmt.Println()
}
