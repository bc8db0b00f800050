// Package live is a Gemini Live client over a raw websocket. One Session is
// one BidiGenerateContent stream: a setup message, then realtime media and
// text from the client and streamed model turns from the server.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-hometour/pkg/loop"
	"google.golang.org/genai"
)

const handshakeTimeout = 10 * time.Second

// Common errors returned by sessions.
var (
	ErrMissingAPIKey = errors.New("live: missing API key")
	ErrClosed        = errors.New("live: session closed")
	ErrRemoteClosed  = errors.New("live: connection closed by server")
	ErrNoSetup       = errors.New("live: server did not acknowledge setup")
)

// clientMessage is the client half of the wire protocol. realtimeInput
// uses the per-media audio/video fields rather than mediaChunks.
type clientMessage struct {
	Setup         *genai.LiveClientSetup                 `json:"setup,omitempty"`
	ClientContent *genai.LiveClientContent               `json:"clientContent,omitempty"`
	RealtimeInput *genai.LiveSendRealtimeInputParameters `json:"realtimeInput,omitempty"`
	ToolResponse  *genai.LiveClientToolResponse          `json:"toolResponse,omitempty"`
}

// Session is an open Live stream. Send methods may be called from one
// goroutine while another iterates Receive.
type Session struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	// messages is unbuffered so nothing is left behind when done closes.
	messages chan *genai.LiveServerMessage
	done     chan struct{}
	readErr  error

	closing   chan struct{}
	closeOnce sync.Once
	closeErr  error

	sessionID string
}

// Connect dials the endpoint, sends the setup message and waits for the
// server to acknowledge it.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "live")

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("live: bad endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", cfg.APIKey)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("live: failed to connect (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("live: failed to connect: %w", err)
	}

	s := &Session{
		conn:     conn,
		logger:   logger,
		messages: make(chan *genai.LiveServerMessage),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
	}

	if err := s.write(ctx, clientMessage{Setup: cfg.setup()}); err != nil {
		s.Close()
		return nil, fmt.Errorf("live: failed to send setup: %w", err)
	}

	go s.readPump()

	select {
	case msg := <-s.messages:
		if msg.SetupComplete == nil {
			s.Close()
			return nil, ErrNoSetup
		}
		s.sessionID = msg.SetupComplete.SessionID
	case <-s.done:
		s.Close()
		return nil, fmt.Errorf("live: setup: %w", s.readErr)
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}

	logger.Info("session ready", "model", cfg.Model, "session_id", s.sessionID, "tools", len(cfg.Tools))
	return s, nil
}

// SessionID returns the id the server assigned, if any.
func (s *Session) SessionID() string { return s.sessionID }

// SendText sends text as a complete user turn.
func (s *Session) SendText(ctx context.Context, text string) error {
	return s.write(ctx, clientMessage{
		ClientContent: &genai.LiveClientContent{
			Turns:        []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
			TurnComplete: true,
		},
	})
}

// SendMedia streams one realtime chunk. Audio MIME types go out as audio
// input and everything else as video.
func (s *Session) SendMedia(ctx context.Context, data []byte, mimeType string) error {
	blob := &genai.Blob{Data: data, MIMEType: mimeType}
	input := &genai.LiveSendRealtimeInputParameters{}
	if strings.HasPrefix(mimeType, "audio/") {
		input.Audio = blob
	} else {
		input.Video = blob
	}
	return s.write(ctx, clientMessage{RealtimeInput: input})
}

// SendToolResponse answers the function calls of a tool-call message.
func (s *Session) SendToolResponse(ctx context.Context, responses []loop.ToolResponse) error {
	frs := make([]*genai.FunctionResponse, 0, len(responses))
	for _, r := range responses {
		frs = append(frs, &genai.FunctionResponse{ID: r.ID, Name: r.Name, Response: r.Response})
	}
	return s.write(ctx, clientMessage{
		ToolResponse: &genai.LiveClientToolResponse{FunctionResponses: frs},
	})
}

// Receive yields the fragments of the next model turn. It stops after the
// fragment carrying TurnComplete, or yields one error when the connection
// fails or ctx ends.
func (s *Session) Receive(ctx context.Context) iter.Seq2[loop.Fragment, error] {
	return func(yield func(loop.Fragment, error) bool) {
		for {
			var msg *genai.LiveServerMessage
			select {
			case <-ctx.Done():
				yield(loop.Fragment{}, ctx.Err())
				return
			case <-s.done:
				yield(loop.Fragment{}, s.readErr)
				return
			case msg = <-s.messages:
			}

			frag, ok := s.fragment(msg)
			if !ok {
				continue
			}
			if !yield(frag, nil) || frag.TurnComplete {
				return
			}
		}
	}
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Session) write(ctx context.Context, msg clientMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.closing:
		return ErrClosed
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("live: encode: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	// A frame cut off part way leaves the stream unusable, so ctx ending
	// during a write closes the session and unblocks the write.
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// readPump decodes server messages until the connection ends.
func (s *Session) readPump() {
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.readErr = s.classify(err)
			return
		}

		var msg genai.LiveServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("undecodable server message", "error", err, "bytes", len(data))
			continue
		}

		select {
		case s.messages <- &msg:
		case <-s.closing:
			s.readErr = ErrClosed
			return
		}
	}
}

func (s *Session) classify(err error) error {
	select {
	case <-s.closing:
		return ErrClosed
	default:
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return fmt.Errorf("%w: %d %s", ErrRemoteClosed, ce.Code, ce.Text)
	}
	return err
}

// fragment converts a server message. ok is false for messages that carry
// nothing for the loop.
func (s *Session) fragment(msg *genai.LiveServerMessage) (frag loop.Fragment, ok bool) {
	if msg.GoAway != nil {
		s.logger.Warn("server going away", "time_left", msg.GoAway.TimeLeft)
	}
	if msg.ToolCallCancellation != nil {
		s.logger.Info("tool calls cancelled", "ids", msg.ToolCallCancellation.IDs)
	}

	if tc := msg.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			if fc == nil {
				continue
			}
			frag.ToolCalls = append(frag.ToolCalls, loop.ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		ok = len(frag.ToolCalls) > 0
	}

	sc := msg.ServerContent
	if sc == nil {
		return frag, ok
	}

	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil {
				continue
			}
			if b := part.InlineData; b != nil && strings.HasPrefix(b.MIMEType, "audio/") {
				frag.Audio = append(frag.Audio, b.Data...)
			}
			if part.Text != "" && !part.Thought {
				frag.Text += part.Text
			}
		}
	}
	if t := sc.OutputTranscription; t != nil {
		frag.Text += t.Text
	}
	frag.Interrupted = sc.Interrupted
	frag.TurnComplete = sc.TurnComplete

	ok = ok || len(frag.Audio) > 0 || frag.Text != "" || frag.Interrupted || frag.TurnComplete
	return frag, ok
}

var _ loop.Session = (*Session)(nil)
