// Package capture implements camera.Source with OpenCV (webcam) and
// kbinani/screenshot (primary display). Both need cgo; without it Open
// returns camera.ErrUnavailable.
package capture
