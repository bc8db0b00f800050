//go:build cgo

package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/kbinani/screenshot"
	"github.com/teslashibe/go-hometour/pkg/camera"
	"gocv.io/x/gocv"
)

// Open returns the source for cfg.Mode, or nil for ModeNone.
// Encoding settings are read from mgr before every frame.
func Open(ctx context.Context, mgr *camera.Manager, logger *slog.Logger) (camera.Source, error) {
	cfg := mgr.GetConfig()
	switch cfg.Mode {
	case camera.ModeNone:
		return nil, nil
	case camera.ModeScreen:
		if screenshot.NumActiveDisplays() == 0 {
			return nil, fmt.Errorf("capture: no active display")
		}
		return &screenSource{mgr: mgr}, nil
	case camera.ModeCamera:
		idx := camera.ResolveIndex(ctx, cfg, logger)
		vc, err := gocv.OpenVideoCapture(idx)
		if err != nil {
			return nil, fmt.Errorf("capture: open camera %d: %w", idx, err)
		}
		if !vc.IsOpened() {
			vc.Close()
			return nil, fmt.Errorf("capture: camera %d not available", idx)
		}
		return &cameraSource{mgr: mgr, vc: vc, index: idx, frame: gocv.NewMat()}, nil
	default:
		return nil, fmt.Errorf("capture: unknown mode %q", cfg.Mode)
	}
}

type cameraSource struct {
	mgr   *camera.Manager
	mu    sync.Mutex
	vc    *gocv.VideoCapture
	frame gocv.Mat
	index int

	// closed is set under mu; Read must never see a released handle.
	closed bool
}

func (s *cameraSource) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, camera.ErrClosed
	}

	if !s.vc.Read(&s.frame) || s.frame.Empty() {
		return nil, fmt.Errorf("capture: camera %d returned no frame", s.index)
	}
	return encode(s.frame, s.mgr.GetConfig())
}

func (s *cameraSource) Name() string { return fmt.Sprintf("camera %d", s.index) }

func (s *cameraSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.frame.Close()
	return s.vc.Close()
}

type screenSource struct {
	mgr *camera.Manager
}

func (s *screenSource) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureDisplay(0)
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot: %w", err)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("capture: convert screenshot: %w", err)
	}
	defer mat.Close()
	return encode(mat, s.mgr.GetConfig())
}

func (s *screenSource) Name() string { return "screen" }

func (s *screenSource) Close() error { return nil }

// encode shrinks src to fit cfg.MaxDimension and JPEG encodes it.
func encode(src gocv.Mat, cfg camera.Config) ([]byte, error) {
	img := src
	w, h := camera.FitWithin(src.Cols(), src.Rows(), cfg.MaxDimension)
	if w != src.Cols() || h != src.Rows() {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(src, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
		img = resized
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, cfg.Quality})
	if err != nil {
		return nil, fmt.Errorf("capture: encode jpeg: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
