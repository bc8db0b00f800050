package loop

import (
	"context"
	"iter"
)

// Session is the bidirectional channel to the model. The sender is its
// only writer and the receiver its only reader.
type Session interface {
	// SendText sends one complete user turn.
	SendText(ctx context.Context, text string) error

	// SendMedia streams a realtime audio or video chunk.
	SendMedia(ctx context.Context, data []byte, mimeType string) error

	// SendToolResponse answers a tool-call message.
	SendToolResponse(ctx context.Context, responses []ToolResponse) error

	// Receive yields the fragments of the next model turn. The sequence
	// ends after the fragment that completes the turn, or with an error
	// when the connection fails or ctx ends.
	Receive(ctx context.Context) iter.Seq2[Fragment, error]

	// Close releases the connection.
	Close() error
}

// Fragment is one piece of a streamed model turn. Any combination of
// fields may be set.
type Fragment struct {
	// Audio is PCM16 at the playback rate.
	Audio []byte

	// Text is model text or transcription, printed as it arrives.
	Text string

	// Interrupted reports that the user barged in; audio queued so far
	// must not be played.
	Interrupted bool

	// TurnComplete marks the last fragment of a turn.
	TurnComplete bool

	// ToolCalls asks the client to run functions.
	ToolCalls []ToolCall
}

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResponse carries a function result back to the model.
type ToolResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ToolHandler executes tool calls. Execute must not panic; failures are
// reported in the returned map.
type ToolHandler interface {
	Execute(name string, args map[string]any) map[string]any
}

// ToolHandlerFunc adapts a function to ToolHandler.
type ToolHandlerFunc func(name string, args map[string]any) map[string]any

// Execute calls f.
func (f ToolHandlerFunc) Execute(name string, args map[string]any) map[string]any {
	return f(name, args)
}

// LineReader reads typed lines from a terminal. Readline blocks and returns
// io.EOF at end of input.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// Observer receives run events. Calls come from the loop's goroutines and
// must not block.
type Observer interface {
	OnState(state State)
	OnText(text string)
	OnFrame(jpeg []byte)
	OnToolCall(call ToolCall, result map[string]any)
}

type nopObserver struct{}

func (nopObserver) OnState(State) {}
func (nopObserver) OnText(string) {}
func (nopObserver) OnFrame([]byte) {}
func (nopObserver) OnToolCall(ToolCall, map[string]any) {}
