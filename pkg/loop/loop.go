// Package loop runs one real-time session: it streams typed text, microphone
// audio and optional video frames to the model and plays back the audio it
// streams in return.
//
// Six goroutines share one cancellation context:
//
//	text source ─┐
//	mic source  ─┼─▶ outbound queue ─▶ sender ─▶ Session ─▶ receiver ─▶ inbound queue ─▶ playback
//	frame source ┘
//
// The first goroutine to return ends the run. Typing the quit token returns
// ErrUserQuit, which Run reports as a clean exit.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-hometour/pkg/audioio"
	"github.com/teslashibe/go-hometour/pkg/camera"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle stage of a Loop.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateDraining
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config holds the run parameters.
type Config struct {
	// APIKey must be non-empty; it is checked before anything is opened.
	APIKey string `json:"-" mapstructure:"-"`

	// QuitToken ends the run when typed on its own (case-insensitive).
	QuitToken string `json:"quit_token" mapstructure:"quit_token"`

	// EmptyLineText replaces an empty typed line.
	EmptyLineText string `json:"empty_line_text" mapstructure:"empty_line_text"`

	// OutboundCapacity bounds the queue feeding the sender.
	OutboundCapacity int `json:"outbound_capacity" mapstructure:"outbound_capacity"`

	// InboundCapacity bounds the audio queue feeding playback.
	InboundCapacity int `json:"inbound_capacity" mapstructure:"inbound_capacity"`

	// FrameInterval is the pause between video frames.
	FrameInterval time.Duration `json:"frame_interval" mapstructure:"frame_interval"`
}

// DefaultConfig returns the standard run parameters without an API key.
func DefaultConfig() Config {
	return Config{
		QuitToken:        "q",
		EmptyLineText:    ".",
		OutboundCapacity: 5,
		InboundCapacity:  1024,
		FrameInterval:    time.Second,
	}
}

// Deps are the collaborators of a run. Every opener is called from the
// goroutine that uses the device, which closes it on exit. A nil opener
// leaves that goroutine out of the run.
type Deps struct {
	// Connect opens the remote session.
	Connect func(ctx context.Context) (Session, error)

	// OpenLines opens the terminal reader.
	OpenLines func() (LineReader, error)

	// OpenMic opens the capture device.
	OpenMic func(ctx context.Context) (audioio.Source, error)

	// OpenSpeaker opens the playback device.
	OpenSpeaker func(ctx context.Context) (audioio.Sink, error)

	// OpenFrames opens the frame source. Nil disables video, as does a
	// nil source.
	OpenFrames func(ctx context.Context) (camera.Source, error)

	// Tools runs tool calls from the model. Optional.
	Tools ToolHandler

	// Observer receives run events. Optional.
	Observer Observer

	// Console receives model text. Defaults to io.Discard.
	Console io.Writer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Loop is a single run. It cannot be restarted.
type Loop struct {
	cfg      Config
	deps     Deps
	id       string
	logger   *slog.Logger
	observer Observer
	console  io.Writer

	state atomic.Int32
	stats Stats
}

// New creates a Loop. Zero config fields take their defaults.
func New(cfg Config, deps Deps) *Loop {
	def := DefaultConfig()
	if cfg.QuitToken == "" {
		cfg.QuitToken = def.QuitToken
	}
	if cfg.EmptyLineText == "" {
		cfg.EmptyLineText = def.EmptyLineText
	}
	if cfg.OutboundCapacity <= 0 {
		cfg.OutboundCapacity = def.OutboundCapacity
	}
	if cfg.InboundCapacity <= 0 {
		cfg.InboundCapacity = def.InboundCapacity
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = def.FrameInterval
	}

	id := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	console := deps.Console
	if console == nil {
		console = io.Discard
	}

	return &Loop{
		cfg:      cfg,
		deps:     deps,
		id:       id,
		logger:   logger.With("component", "loop", "run_id", id),
		observer: observer,
		console:  console,
	}
}

// ID returns the run id.
func (l *Loop) ID() string { return l.id }

// State returns the current lifecycle stage.
func (l *Loop) State() State { return State(l.state.Load()) }

// Stats returns the live counters.
func (l *Loop) Stats() *Stats { return &l.stats }

func (l *Loop) setState(s State) {
	if State(l.state.Swap(int32(s))) == s {
		return
	}
	l.logger.Debug("state", "state", s)
	l.observer.OnState(s)
}

// Run connects, streams until the first goroutine exits, then tears down.
// It returns nil after a quit, end of input or cancellation of ctx, a
// *StartupError if the session could not be opened, and otherwise the
// error that ended the run.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return ErrAlreadyRun
	}
	l.observer.OnState(StateConnecting)

	if l.cfg.APIKey == "" {
		l.setState(StateClosed)
		return &StartupError{Stage: "credentials", Err: ErrMissingAPIKey}
	}
	if l.deps.Connect == nil {
		l.setState(StateClosed)
		return &StartupError{Stage: "connect", Err: errors.New("no session dialer")}
	}

	sess, err := l.deps.Connect(ctx)
	if err != nil {
		l.setState(StateClosed)
		return &StartupError{Stage: "connect", Err: err}
	}

	var closeOnce sync.Once
	closeSession := func() {
		closeOnce.Do(func() {
			if err := sess.Close(); err != nil {
				l.logger.Debug("session close", "error", err)
			}
		})
	}
	defer closeSession()

	out := NewQueue[OutboundItem](l.cfg.OutboundCapacity)
	in := NewQueue[inboundAudio](l.cfg.InboundCapacity)

	g, gctx := errgroup.WithContext(ctx)
	l.setState(StateStreaming)
	l.logger.Info("streaming", "video", l.deps.OpenFrames != nil)

	if l.deps.OpenLines != nil {
		g.Go(func() error { return l.runText(gctx, out) })
	}
	if l.deps.OpenMic != nil {
		g.Go(func() error { return l.runMic(gctx, out) })
	}
	if l.deps.OpenFrames != nil {
		g.Go(func() error { return l.runFrames(gctx, out) })
	}
	g.Go(func() error { return l.runSender(gctx, sess, out) })
	g.Go(func() error { return l.runReceiver(gctx, sess, in, out) })
	if l.deps.OpenSpeaker != nil {
		g.Go(func() error { return l.runPlayback(gctx, in) })
	}
	g.Go(func() error {
		<-gctx.Done()
		l.setState(StateDraining)
		// Closing here unblocks a task stuck in a network write or read.
		closeSession()
		return nil
	})

	err = g.Wait()
	closeSession()
	l.setState(StateClosed)

	l.logger.Info("run finished", l.stats.Snapshot().attrs()...)

	switch {
	case err == nil, errors.Is(err, ErrUserQuit):
		return nil
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

