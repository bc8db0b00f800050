package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/teslashibe/go-hometour/pkg/audioio"
	"github.com/teslashibe/go-hometour/pkg/camera"
)

// inboundAudio is a received PCM chunk stamped with the queue generation
// it was pushed in. Playback drops chunks from an older generation.
type inboundAudio struct {
	data []byte
	gen  uint64
}

type lineResult struct {
	line string
	err  error
}

// runText forwards typed lines until the quit token or end of input.
func (l *Loop) runText(ctx context.Context, out *Queue[OutboundItem]) error {
	lines, err := l.deps.OpenLines()
	if err != nil {
		return &DeviceError{Device: "terminal", Err: err}
	}
	defer lines.Close()

	// Readline blocks until the user hits enter, so it runs on its own
	// goroutine and is unblocked by Close on the way out.
	results := make(chan lineResult)
	go func() {
		for {
			line, err := lines.Readline()
			select {
			case results <- lineResult{line: line, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		var r lineResult
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r = <-results:
		}

		if r.err != nil {
			if errors.Is(r.err, io.EOF) {
				l.logger.Info("end of input")
				return ErrUserQuit
			}
			return &DeviceError{Device: "terminal", Err: r.err}
		}
		if strings.EqualFold(strings.TrimSpace(r.line), l.cfg.QuitToken) {
			l.logger.Info("quit requested")
			return ErrUserQuit
		}

		text := r.line
		if text == "" {
			text = l.cfg.EmptyLineText
		}
		if err := out.Push(ctx, TextItem(text)); err != nil {
			return err
		}
	}
}

// runMic streams fixed-size PCM chunks from the microphone.
func (l *Loop) runMic(ctx context.Context, out *Queue[OutboundItem]) error {
	src, err := l.deps.OpenMic(ctx)
	if err != nil {
		return &DeviceError{Device: "microphone", Err: err}
	}
	defer src.Close()

	if err := src.Start(ctx); err != nil {
		return &DeviceError{Device: "microphone", Err: err}
	}
	cfg := src.Config()
	mimeType := cfg.MIMEType()
	l.logger.Info("microphone open", "backend", src.Name(), "sample_rate", cfg.SampleRate)

	for {
		chunk, err := src.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &DeviceError{Device: "microphone", Err: err}
		}
		l.stats.SetMicLevel(audioio.Level(chunk.Samples))

		if err := out.Push(ctx, AudioItem(chunk.Bytes(), mimeType)); err != nil {
			return err
		}
	}
}

type frameResult struct {
	frame []byte
	err   error
}

// runFrames pushes one frame per interval. A capture failure ends the run.
func (l *Loop) runFrames(ctx context.Context, out *Queue[OutboundItem]) error {
	src, err := l.deps.OpenFrames(ctx)
	if err != nil {
		return &DeviceError{Device: "camera", Err: err}
	}
	if src == nil {
		return nil
	}
	defer src.Close()
	l.logger.Info("video source open", "source", src.Name(), "interval", l.cfg.FrameInterval)

	ticker := time.NewTicker(l.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		// Capture blocks on the device, so it runs off this goroutine.
		done := make(chan frameResult, 1)
		go func() {
			frame, err := src.Capture(ctx)
			done <- frameResult{frame: frame, err: err}
		}()

		var r frameResult
		select {
		case <-ctx.Done():
			// src stays open until the capture in flight returns.
			<-done
			return ctx.Err()
		case r = <-done:
		}
		if r.err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &DeviceError{Device: "camera", Err: r.err}
		}

		if err := out.Push(ctx, VideoItem(r.frame, camera.MIMEType)); err != nil {
			return err
		}
		l.observer.OnFrame(r.frame)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runSender is the only writer to the session.
func (l *Loop) runSender(ctx context.Context, sess Session, out *Queue[OutboundItem]) error {
	for {
		item, err := out.Pop(ctx)
		if err != nil {
			return err
		}
		if err := send(ctx, sess, item); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransportError{Op: "send", Err: err}
		}
		l.stats.countSent(item.Kind)
	}
}

func send(ctx context.Context, sess Session, item OutboundItem) error {
	switch item.Kind {
	case KindText:
		return sess.SendText(ctx, item.Text)
	case KindAudio, KindVideo:
		return sess.SendMedia(ctx, item.Data, item.MIMEType)
	case KindToolResponse:
		return sess.SendToolResponse(ctx, item.Responses)
	default:
		return fmt.Errorf("unknown item kind %d", int(item.Kind))
	}
}

// runReceiver reads turn after turn until the run ends.
func (l *Loop) runReceiver(ctx context.Context, sess Session, in *Queue[inboundAudio], out *Queue[OutboundItem]) error {
	for {
		printed := false
		for frag, err := range sess.Receive(ctx) {
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &TransportError{Op: "receive", Err: err}
			}

			if frag.Interrupted {
				n := in.Clear()
				l.stats.Interruptions.Add(1)
				l.stats.AudioCleared.Add(int64(n))
				l.logger.Debug("interrupted", "cleared", n)
			}
			if len(frag.Audio) > 0 {
				l.stats.AudioReceived.Add(1)
				if err := in.Push(ctx, inboundAudio{data: frag.Audio, gen: in.Generation()}); err != nil {
					return err
				}
			}
			if frag.Text != "" {
				fmt.Fprint(l.console, frag.Text)
				l.observer.OnText(frag.Text)
				printed = true
			}
			if len(frag.ToolCalls) > 0 {
				if err := l.handleToolCalls(ctx, frag.ToolCalls, out); err != nil {
					return err
				}
			}
			if frag.TurnComplete {
				l.stats.Turns.Add(1)
			}
		}
		if printed {
			fmt.Fprintln(l.console)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// handleToolCalls runs each call and queues the answers for the sender.
func (l *Loop) handleToolCalls(ctx context.Context, calls []ToolCall, out *Queue[OutboundItem]) error {
	responses := make([]ToolResponse, 0, len(calls))
	for _, call := range calls {
		l.stats.ToolCalls.Add(1)
		l.logger.Info("tool call", "tool", call.Name, "id", call.ID)

		var result map[string]any
		if l.deps.Tools == nil {
			result = map[string]any{"status": "error", "message": ErrNoToolHandler.Error()}
		} else {
			result = l.deps.Tools.Execute(call.Name, call.Args)
		}

		l.logger.Info("tool call done", "tool", call.Name, "id", call.ID, "status", result["status"])
		l.observer.OnToolCall(call, result)
		responses = append(responses, ToolResponse{ID: call.ID, Name: call.Name, Response: result})
	}
	return out.Push(ctx, ToolResponseItem(responses))
}

// runPlayback writes received audio to the speaker in order.
func (l *Loop) runPlayback(ctx context.Context, in *Queue[inboundAudio]) error {
	sink, err := l.deps.OpenSpeaker(ctx)
	if err != nil {
		return &DeviceError{Device: "speaker", Err: err}
	}
	defer sink.Close()

	if err := sink.Start(ctx); err != nil {
		return &DeviceError{Device: "speaker", Err: err}
	}
	cfg := sink.Config()
	l.logger.Info("speaker open", "backend", sink.Name(), "sample_rate", cfg.SampleRate)

	gen := in.Generation()
	for {
		a, err := in.Pop(ctx)
		if err != nil {
			return err
		}

		if cur := in.Generation(); cur != gen {
			gen = cur
			if err := sink.Clear(); err != nil {
				l.logger.Debug("speaker clear", "error", err)
			}
		}
		if a.gen != gen {
			l.stats.AudioCleared.Add(1)
			continue
		}

		chunk := audioio.ChunkFromBytes(a.data, cfg.SampleRate, cfg.Channels)
		if err := sink.Write(ctx, chunk); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &DeviceError{Device: "speaker", Err: err}
		}
		l.stats.AudioPlayed.Add(1)
	}
}
