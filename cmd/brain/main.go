// Command brain runs the coordination kernel: drives logging stand-in
// driver nodes (no real driver transport is wired in), calibrates the
// vision pipeline, acquires every long-lived module, and runs the
// coordinator/planner/operator-server loop until interrupted. Grounded on
// original_source/app/__main__.py's connect/run_program, with asyncio's
// task group replaced by internal/lifecycle.Acquire/Release pairs and
// os/signal in place of the KeyboardInterrupt handler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/thymio-project/brain/internal/brainconfig"
	"github.com/thymio-project/brain/internal/coordinator"
	"github.com/thymio-project/brain/internal/driverbus"
	"github.com/thymio-project/brain/internal/ekf"
	"github.com/thymio-project/brain/internal/lifecycle"
	"github.com/thymio-project/brain/internal/localnav"
	"github.com/thymio-project/brain/internal/logging"
	"github.com/thymio-project/brain/internal/motion"
	"github.com/thymio-project/brain/internal/planner"
	"github.com/thymio-project/brain/internal/state"
	"github.com/thymio-project/brain/internal/vision"
	"github.com/thymio-project/brain/internal/workerpool"
	"github.com/thymio-project/brain/internal/wsserver"
)

func main() {
	app := &cli.App{
		Name:  "brain",
		Usage: "run the Thymio coordination kernel",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a JSON config overlay"},
			&cli.StringFlag{Name: "calibration", Usage: "path to the vision calibration JSON file"},
			&cli.StringFlag{Name: "image", Usage: "still image file to use instead of a live camera"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn, or error"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("brain: %v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level, err := logging.LevelFromString(c.String("log-level"))
	if err != nil {
		return err
	}
	logger := logging.New("brain", level)

	cfg, err := brainconfig.Load(c.String("config"))
	if err != nil {
		return err
	}

	color.Cyan("brain: starting coordination kernel")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := state.New(cfg.Subdivisions, cfg.PhysicalSizeCM)

	pipeline, err := buildPipeline(c, cfg, logger)
	if err != nil {
		return fmt.Errorf("brain: building vision pipeline: %w", err)
	}

	filter := ekf.New(state.Pose{}, cfg.Wheelbase, realClock())

	node := driverbus.NewLoggingNode("base", logger)
	var nodeTop driverbus.Node
	if cfg.AuxActuatorNode != "" {
		nodeTop = driverbus.NewLoggingNode(cfg.AuxActuatorNode, logger)
	}

	motionCtrl := motion.New()

	coord := coordinator.New(st, filter, pipeline, motionCtrl, node, nodeTop, logger, coordinator.Config{
		SceneThreshold: cfg.SceneThreshold,
		LoopPeriod:     secondsToDuration(cfg.LoopPeriodSeconds),
		UseLiveCamera:  cfg.UseLiveCamera,
	})
	coord.Init()

	pool := workerpool.New(cfg.PoolSize)
	defer pool.Close()

	plan := planner.New(st, pool, logger, cfg.SafeDistanceCM)
	st.SetOptimise(cfg.OptimisePath)

	reactive := localnav.New(realClock())

	wsNodes := []driverbus.Node{node}
	if nodeTop != nil {
		wsNodes = append(wsNodes, nodeTop)
	}
	server := wsserver.New(cfg.WSAddr, st, wsNodes, logger, stop)

	ekfModule := lifecycle.Acquire(ctx, node, &ekfProcessor{filter: filter, state: st}, logger, nil)
	defer ekfModule.Release()

	localnavModule := lifecycle.Acquire(ctx, node, &localnavProcessor{ctrl: reactive, state: st}, logger, nil)
	defer localnavModule.Release()

	plannerModule := lifecycle.Acquire(ctx, nil, nil, logger, plan.Run)
	defer plannerModule.Release()

	serverModule := lifecycle.Acquire(ctx, nil, nil, logger, func(ctx context.Context) {
		if err := server.Serve(ctx); err != nil {
			logger.Errorw("brain: operator server stopped", "error", err)
		}
	})
	defer serverModule.Release()

	color.Green("brain: running, operator server on %s", cfg.WSAddr)

	if err := coord.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("brain: coordinator loop failed: %w", err)
	}

	color.Yellow("brain: shutting down")
	return nil
}

// buildPipeline constructs the vision pipeline from a calibration file and
// frame source. A missing --calibration flag disables vision entirely
// (Coordinator.ingestVision no-ops on a nil pipeline), matching a desk test
// run with no camera or calibration data at all.
func buildPipeline(c *cli.Context, cfg brainconfig.Config, logger logging.Logger) (*vision.Pipeline, error) {
	calPath := c.String("calibration")
	if calPath == "" {
		logger.Warnw("brain: no --calibration file given, running without vision")
		return nil, nil
	}

	cal, err := vision.LoadCalibration(calPath)
	if err != nil {
		return nil, err
	}

	tableLenPX := int(cfg.PixelsPerCM*cfg.TableLenCM + 0.5)
	homography, err := vision.Calibrate(cal.ImageCorners(), tableLenPX)
	if err != nil {
		return nil, fmt.Errorf("vision: computing homography: %w", err)
	}

	imagePath := c.String("image")
	if imagePath == "" {
		logger.Warnw("brain: no --image fallback configured and no live camera driver in this build; running without vision")
		return nil, nil
	}
	source := vision.NewFileSource(imagePath)

	visionCfg := vision.Config{
		PixelsPerCM:        cfg.PixelsPerCM,
		TableLenCM:         cfg.TableLenCM,
		Subdivisions:       cfg.Subdivisions,
		FinalSize:          cfg.FinalSize,
		SafeDistanceCM:     cfg.SafeDistanceCM,
		PhysicalSizeCM:     cfg.PhysicalSizeCM,
		LandmarkFrontCM:    cfg.LandmarkFrontCM,
		LandmarkBackCM:     cfg.LandmarkBackCM,
		LandmarkDetectMin:  cfg.LandmarkDetectMin,
		IsolateThreshold:   cfg.IsolateThreshold,
		SceneThreshold:     uint8(cfg.SceneThreshold),
		ObstacleColor:      cal.ObstacleColor.ToColorRange(),
		BackLandmarkColor:  cal.BackColor.ToColorRange(),
		FrontLandmarkColor: cal.FrontColor.ToColorRange(),
	}

	return vision.NewPipeline(visionCfg, source, homography, tableLenPX), nil
}

// realClock returns the wall-clock clock.Clock used outside of tests.
func realClock() clock.Clock {
	return clock.New()
}

// secondsToDuration converts a config's float seconds field to a
// time.Duration; sub-nanosecond fractions are truncated.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// ekfProcessor adapts ekf.Filter to driverbus.EventProcessor, translating
// motor-speed driver events into Predict calls. Mirrors context.py wiring
// motors.speed events straight to EKF.predict.
type ekfProcessor struct {
	filter *ekf.Filter
	state  *state.State
}

func (p *ekfProcessor) ProcessEvent(variables map[string]interface{}) {
	vL, vR, ok := driverbus.WheelSpeeds(variables)
	if !ok {
		return
	}
	p.filter.Predict(vL, vR)
	p.state.SetPose(p.filter.Pose())
	p.state.Changed()
}

// localnavProcessor adapts localnav.Controller to driverbus.EventProcessor,
// translating prox.horizontal driver events into ProcessEvent calls.
type localnavProcessor struct {
	ctrl  *localnav.Controller
	state *state.State
}

func (p *localnavProcessor) ProcessEvent(variables map[string]interface{}) {
	raw, ok := driverbus.ProxHorizontal(variables)
	if !ok {
		return
	}
	p.ctrl.ProcessEvent(p.state, raw)
}
