package loop

// Kind tags an OutboundItem with its media type.
type Kind int

const (
	KindText Kind = iota
	KindAudio
	KindVideo
	KindToolResponse
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindToolResponse:
		return "tool_response"
	default:
		return "unknown"
	}
}

// OutboundItem is one unit of work for the sender. It is not modified once
// it has been pushed.
type OutboundItem struct {
	Kind Kind

	// Text is set for KindText.
	Text string

	// Data and MIMEType are set for KindAudio and KindVideo.
	Data     []byte
	MIMEType string

	// Responses is set for KindToolResponse.
	Responses []ToolResponse
}

// TextItem wraps a typed line.
func TextItem(text string) OutboundItem {
	return OutboundItem{Kind: KindText, Text: text}
}

// AudioItem wraps a PCM16 chunk.
func AudioItem(data []byte, mimeType string) OutboundItem {
	return OutboundItem{Kind: KindAudio, Data: data, MIMEType: mimeType}
}

// VideoItem wraps an encoded frame.
func VideoItem(data []byte, mimeType string) OutboundItem {
	return OutboundItem{Kind: KindVideo, Data: data, MIMEType: mimeType}
}

// ToolResponseItem wraps the results of one tool-call message.
func ToolResponseItem(responses []ToolResponse) OutboundItem {
	return OutboundItem{Kind: KindToolResponse, Responses: responses}
}
