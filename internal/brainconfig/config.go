// Package brainconfig holds the compile-time constants from the system
// spec as a defaultable, hot-reloadable struct, following the teacher's
// config package: JSON on disk, env-var interpolated, watched with
// fsnotify.
package brainconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/a8m/envsubst"
	"github.com/fsnotify/fsnotify"

	"github.com/thymio-project/brain/internal/logging"
)

// Config is the full set of tunables from spec.md §6. Field names match
// the spec's constant names so the JSON override file can be a partial
// object.
type Config struct {
	Subdivisions      int     `json:"subdivisions"`
	PhysicalSizeCM    float64 `json:"physical_size_cm"`
	Wheelbase         float64 `json:"wheelbase_cm"`
	SafeDistanceCM    float64 `json:"safe_distance_cm"`
	SceneThreshold    int64   `json:"scene_threshold"`
	PixelsPerCM       float64 `json:"pixels_per_cm"`
	TableLenCM        float64 `json:"table_len_cm"`
	LandmarkFrontCM   float64 `json:"landmark_front_cm"`
	LandmarkBackCM    float64 `json:"landmark_back_cm"`
	LandmarkDetectMin float64 `json:"landmark_detection_threshold"`
	FinalSize         int     `json:"final_size"`
	IsolateThreshold  int     `json:"isolate_threshold"`
	PoolSize          int     `json:"pool_size"`
	LoopPeriodSeconds float64 `json:"loop_period_seconds"`
	MotionMaxWaitSec  float64 `json:"motion_max_wait_seconds"`
	ThymioToCM        float64 `json:"thymio_to_cm"`
	WSAddr            string  `json:"ws_addr"`
	UseLiveCamera     bool    `json:"use_live_camera"`
	OptimisePath      bool    `json:"optimise_path"`
	AuxActuatorNode   string  `json:"aux_actuator_node"`
}

// Default returns the spec's compile-time constants (spec.md §6).
func Default() Config {
	return Config{
		Subdivisions:      64,
		PhysicalSizeCM:    110,
		Wheelbase:         9.5,
		SafeDistanceCM:    15,
		SceneThreshold:    10,
		PixelsPerCM:       5,
		TableLenCM:        58,
		LandmarkFrontCM:   2.7,
		LandmarkBackCM:    3.2,
		LandmarkDetectMin: 0.4,
		FinalSize:         64,
		IsolateThreshold:  2,
		PoolSize:          4,
		LoopPeriodSeconds: 0.1,
		MotionMaxWaitSec:  0.1,
		ThymioToCM:        3.85e-2,
		WSAddr:            "127.0.0.1:8080",
		UseLiveCamera:     true,
		OptimisePath:      false,
		AuxActuatorNode:   "",
	}
}

// Load reads a JSON config file, interpolating ${VAR}/$VAR references
// against the process environment (github.com/a8m/envsubst, the same
// library the teacher uses for config templating), and overlays it onto
// Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("brainconfig: reading %s: %w", path, err)
	}

	expanded, err := envsubst.String(string(raw))
	if err != nil {
		return cfg, fmt.Errorf("brainconfig: expanding env vars in %s: %w", path, err)
	}

	if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("brainconfig: parsing %s: %w", path, err)
	}

	return cfg, nil
}

// Watcher pushes a freshly loaded Config onto Changes whenever the backing
// file is rewritten, mirroring the teacher's config.Watcher.
type Watcher struct {
	path    string
	logger  logging.Logger
	watcher *fsnotify.Watcher
	Changes chan Config
	done    chan struct{}
}

// WatchFile starts watching path for changes. Call Close to stop.
func WatchFile(path string, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("brainconfig: creating watcher: %w", err)
	}

	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("brainconfig: watching %s: %w", path, err)
	}

	w := &Watcher{
		path:    path,
		logger:  logger,
		watcher: fsw,
		Changes: make(chan Config, 1),
		done:    make(chan struct{}),
	}

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warnw("config reload failed", "error", err)
				continue
			}
			select {
			case w.Changes <- cfg:
			default:
				// Drop the stale pending reload in favor of the new one.
				select {
				case <-w.Changes:
				default:
				}
				w.Changes <- cfg
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
