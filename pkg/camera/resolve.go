package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sort"
	"strings"
)

// ResolveIndex picks the OpenCV device index for cfg.
//
// An explicit non-negative Index wins. Otherwise, on macOS, Name is matched
// against the system_profiler camera list sorted by unique id, which is the
// order AVFoundation hands devices to OpenCV. Failures are logged and fall
// back to device 0.
func ResolveIndex(ctx context.Context, cfg Config, logger *slog.Logger) int {
	if cfg.Index >= 0 {
		return cfg.Index
	}
	if cfg.Name == "" || runtime.GOOS != "darwin" {
		return 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	out, err := exec.CommandContext(ctx, "system_profiler", "-json", "SPCameraDataType").Output()
	if err != nil {
		logger.Warn("unable to query camera list", "camera", cfg.Name, "error", err)
		return 0
	}
	idx, err := matchCamera(out, cfg.Name)
	if err != nil {
		logger.Warn("camera not found, using default", "camera", cfg.Name, "error", err)
		return 0
	}
	logger.Info("resolved camera", "camera", cfg.Name, "index", idx)
	return idx
}

type cameraReport struct {
	Cameras []struct {
		Name     string `json:"_name"`
		UniqueID string `json:"spcamera_unique-id"`
	} `json:"SPCameraDataType"`
}

// matchCamera finds name in a system_profiler JSON report.
func matchCamera(report []byte, name string) (int, error) {
	var r cameraReport
	if err := json.Unmarshal(report, &r); err != nil {
		return 0, fmt.Errorf("parse camera list: %w", err)
	}

	cams := r.Cameras
	sort.SliceStable(cams, func(i, j int) bool { return cams[i].UniqueID < cams[j].UniqueID })

	want := strings.ToLower(name)
	for i, cam := range cams {
		if cam.Name != "" && strings.Contains(strings.ToLower(cam.Name), want) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no camera matching %q among %d devices", name, len(cams))
}
