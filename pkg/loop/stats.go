package loop

import (
	"math"
	"sync/atomic"
)

// Stats counts what moved through a run. All fields are safe for
// concurrent use.
type Stats struct {
	TextSent          atomic.Int64
	AudioSent         atomic.Int64
	VideoSent         atomic.Int64
	ToolResponsesSent atomic.Int64

	AudioReceived atomic.Int64
	AudioPlayed   atomic.Int64
	AudioCleared  atomic.Int64
	Interruptions atomic.Int64
	Turns         atomic.Int64
	ToolCalls     atomic.Int64

	micLevel atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	TextSent          int64   `json:"text_sent"`
	AudioSent         int64   `json:"audio_sent"`
	VideoSent         int64   `json:"video_sent"`
	ToolResponsesSent int64   `json:"tool_responses_sent"`
	AudioReceived     int64   `json:"audio_received"`
	AudioPlayed       int64   `json:"audio_played"`
	AudioCleared      int64   `json:"audio_cleared"`
	Interruptions     int64   `json:"interruptions"`
	Turns             int64   `json:"turns"`
	ToolCalls         int64   `json:"tool_calls"`
	MicLevel          float64 `json:"mic_level"`
}

func (s *Stats) countSent(k Kind) {
	switch k {
	case KindText:
		s.TextSent.Add(1)
	case KindAudio:
		s.AudioSent.Add(1)
	case KindVideo:
		s.VideoSent.Add(1)
	case KindToolResponse:
		s.ToolResponsesSent.Add(1)
	}
}

// SetMicLevel records the RMS level of the last captured chunk.
func (s *Stats) SetMicLevel(level float64) {
	s.micLevel.Store(math.Float64bits(level))
}

// MicLevel returns the RMS level of the last captured chunk, 0.0 to 1.0.
func (s *Stats) MicLevel() float64 {
	return math.Float64frombits(s.micLevel.Load())
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TextSent:          s.TextSent.Load(),
		AudioSent:         s.AudioSent.Load(),
		VideoSent:         s.VideoSent.Load(),
		ToolResponsesSent: s.ToolResponsesSent.Load(),
		AudioReceived:     s.AudioReceived.Load(),
		AudioPlayed:       s.AudioPlayed.Load(),
		AudioCleared:      s.AudioCleared.Load(),
		Interruptions:     s.Interruptions.Load(),
		Turns:             s.Turns.Load(),
		ToolCalls:         s.ToolCalls.Load(),
		MicLevel:          s.MicLevel(),
	}
}

// attrs returns the counters as slog key/value pairs.
func (s StatsSnapshot) attrs() []any {
	return []any{
		"text_sent", s.TextSent,
		"audio_sent", s.AudioSent,
		"video_sent", s.VideoSent,
		"tool_responses", s.ToolResponsesSent,
		"audio_received", s.AudioReceived,
		"audio_played", s.AudioPlayed,
		"audio_cleared", s.AudioCleared,
		"interruptions", s.Interruptions,
		"turns", s.Turns,
		"tool_calls", s.ToolCalls,
	}
}
