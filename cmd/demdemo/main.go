// Command demdemo drives a small set of built-in scenes through the
// godem engine from the command line, mirroring the flag/pprof/
// signal-handling shell of the physics engines this package is descended
// from. Scenes are built in; there is no scene-file loading.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/dem-sim/godem/godem"
)

const version = "0.1.0"

type cliConfig struct {
	Scene   string
	NSteps  int
	Dt      float64
	DriftU  int
	Gravity float64

	Beta     float64
	VMax     float64
	BinSize  float64

	StatsInterval float64
	Verbose       bool
	Quiet         bool
	ProfileCPU    string
	ProfileMem    string

	SphereOut string
}

func parseFlags() cliConfig {
	var c cliConfig
	flag.StringVar(&c.Scene, "scene", "rain", "built-in scene to run (rain, box, mixer)")
	flag.IntVar(&c.NSteps, "steps", 1000, "number of DI steps to run")
	flag.Float64Var(&c.Dt, "timestep", 1e-4, "DI integration timestep (s)")
	flag.IntVar(&c.DriftU, "drift-budget", 5, "max DI steps per CD publication (U)")
	flag.Float64Var(&c.Gravity, "gravity", -9.81, "gravity along Z")

	flag.Float64Var(&c.Beta, "expand-factor", 0.01, "safety margin beta, in world length units")
	flag.Float64Var(&c.VMax, "max-velocity", 10.0, "expected max owner speed, for the beta >= U*dt*v_max check")
	flag.Float64Var(&c.BinSize, "bin-size", 0.05, "broad-phase bin edge length")

	flag.Float64Var(&c.StatsInterval, "stats-interval", 1.0, "statistics reporting interval, seconds")
	flag.BoolVar(&c.Verbose, "verbose", false, "verbose output")
	flag.BoolVar(&c.Quiet, "quiet", false, "minimal output")
	flag.StringVar(&c.ProfileCPU, "profile-cpu", "", "CPU profile output file")
	flag.StringVar(&c.ProfileMem, "profile-mem", "", "memory profile output file")
	flag.StringVar(&c.SphereOut, "sphere-out", "", "write final sphere positions to this CSV file")

	showVersion := flag.Bool("version", false, "show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "demdemo - godem discrete-element engine demo runner\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("demdemo v%s\n", version)
		os.Exit(0)
	}
	return c
}

func main() {
	cfg := parseFlags()

	if cfg.Quiet {
		log.SetOutput(os.Stderr)
	} else if cfg.Verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	if cfg.ProfileCPU != "" {
		f, err := os.Create(cfg.ProfileCPU)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	if !cfg.Quiet {
		log.Printf("demdemo v%s starting, scene=%s steps=%d workers=%d", version, cfg.Scene, cfg.NSteps, runtime.NumCPU())
	}

	ctrl := godem.NewController()
	ctrl.SetVerbosity(boolToVerbosity(cfg.Verbose))

	if err := buildScene(ctrl, cfg); err != nil {
		log.Fatalf("failed to build scene %q: %v", cfg.Scene, err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	stop := make(chan struct{})
	go func() {
		select {
		case <-sigChan:
			if !cfg.Quiet {
				log.Println("shutting down gracefully...")
			}
			close(stop)
		case <-stop:
		}
	}()

	if !cfg.Quiet {
		go reportStats(ctrl, stop, cfg.StatsInterval, cfg.Verbose)
	}

	const chunkSteps = 50
	totalDuration := float64(cfg.NSteps) * cfg.Dt
	chunkDuration := float64(chunkSteps) * cfg.Dt
	doneDuration := 0.0
	for doneDuration < totalDuration {
		select {
		case <-stop:
			doneDuration = totalDuration
			continue
		default:
		}
		d := chunkDuration
		if totalDuration-doneDuration < d {
			d = totalDuration - doneDuration
		}
		if err := ctrl.Step(d); err != nil {
			log.Fatalf("engine error: %v", err)
		}
		doneDuration += d
		ctrl.ShowAnomalies()
	}

	if err := ctrl.Sync(); err != nil {
		log.Printf("final sync error: %v", err)
	}
	ctrl.ShutDown()

	if cfg.SphereOut != "" {
		if err := writeFinalSpheres(ctrl, cfg.SphereOut); err != nil {
			log.Printf("could not write sphere output: %v", err)
		}
	}

	if cfg.ProfileMem != "" {
		f, err := os.Create(cfg.ProfileMem)
		if err != nil {
			log.Printf("could not create memory profile: %v", err)
		} else {
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Printf("could not write memory profile: %v", err)
			}
		}
	}

	if !cfg.Quiet {
		ins := ctrl.Inspector()
		log.Printf("simulation completed:")
		log.Printf("  clumps: %d", ins.ClumpCount())
		log.Printf("  max z: %.4f  min z: %.4f", ins.ClumpMaxZ(), ins.ClumpMinZ())
		log.Printf("  max |v|: %.4f  kinetic energy: %.6f", ins.ClumpMaxAbsVelocity(), ins.ClumpKineticEnergy())
	}
}

func boolToVerbosity(v bool) int {
	if v {
		return 2
	}
	return 1
}

func reportStats(ctrl *godem.Controller, stop <-chan struct{}, interval float64, verbose bool) {
	ticker := time.NewTicker(time.Duration(interval * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ctrl.Sync(); err != nil {
				return
			}
			ins := ctrl.Inspector()
			if verbose {
				log.Printf("clumps: %d | max|v|: %.4f | KE: %.6f | maxZ: %.4f",
					ins.ClumpCount(), ins.ClumpMaxAbsVelocity(), ins.ClumpKineticEnergy(), ins.ClumpMaxZ())
			} else {
				log.Printf("clumps: %d | maxZ: %.4f", ins.ClumpCount(), ins.ClumpMaxZ())
			}
		case <-stop:
			return
		}
	}
}
