// Package portaudio registers the PortAudio backend with audioio.
//
// Import it for side effects:
//
//	import _ "github.com/teslashibe/go-hometour/pkg/audioio/portaudio"
//
// The backend needs cgo and the PortAudio headers
// (brew install portaudio, apt-get install portaudio19-dev). Without cgo the
// package compiles to nothing and audioio falls back to an error for "auto".
package portaudio
