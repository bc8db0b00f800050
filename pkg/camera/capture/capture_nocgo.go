//go:build !cgo

package capture

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-hometour/pkg/camera"
)

// Open returns camera.ErrUnavailable unless the mode is ModeNone.
func Open(_ context.Context, mgr *camera.Manager, _ *slog.Logger) (camera.Source, error) {
	if mgr.GetConfig().Mode == camera.ModeNone {
		return nil, nil
	}
	return nil, camera.ErrUnavailable
}
