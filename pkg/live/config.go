package live

import (
	"errors"

	"google.golang.org/genai"
)

const (
	// DefaultEndpoint is the Gemini Live websocket endpoint. Proactive audio
	// is only available on v1alpha.
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"

	// DefaultModel is the native-audio Live model.
	DefaultModel = "models/gemini-2.5-flash-native-audio-preview-09-2025"
)

// Config holds the parameters of a Live session.
type Config struct {
	APIKey   string `json:"-" mapstructure:"-"`
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	Model    string `json:"model" mapstructure:"model"`

	// Voice is a prebuilt voice name (Puck, Charon, Kore, Fenrir, Aoede).
	// Empty uses the model default.
	Voice string `json:"voice" mapstructure:"voice"`

	// SystemInstruction is sent once in the setup message.
	SystemInstruction string `json:"-" mapstructure:"-"`

	// Tools are the function declarations offered to the model.
	Tools []*genai.Tool `json:"-" mapstructure:"-"`

	// ProactiveAudio lets the model stay silent when speech is not
	// addressed to it.
	ProactiveAudio bool `json:"proactive_audio" mapstructure:"proactive_audio"`

	// OutputTranscription asks for a text transcript of the model's speech,
	// delivered as Fragment.Text.
	OutputTranscription bool `json:"output_transcription" mapstructure:"output_transcription"`
}

// DefaultConfig returns the home-tour session defaults without credentials.
func DefaultConfig() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		Model:          DefaultModel,
		ProactiveAudio: true,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Endpoint == "" {
		return errors.New("live: endpoint required")
	}
	if c.Model == "" {
		return errors.New("live: model required")
	}
	return nil
}

// WithAPIKey returns a copy with the API key set.
func (c Config) WithAPIKey(key string) Config {
	c.APIKey = key
	return c
}

// WithSystemInstruction returns a copy with the system instruction set.
func (c Config) WithSystemInstruction(text string) Config {
	c.SystemInstruction = text
	return c
}

// WithTools returns a copy offering tools to the model.
func (c Config) WithTools(tools ...*genai.Tool) Config {
	c.Tools = tools
	return c
}

// setup builds the first client message of a session.
func (c *Config) setup() *genai.LiveClientSetup {
	s := &genai.LiveClientSetup{
		Model: c.Model,
		GenerationConfig: &genai.GenerationConfig{
			ResponseModalities: []genai.Modality{genai.ModalityAudio},
		},
		Tools: c.Tools,
	}
	if c.Voice != "" {
		s.GenerationConfig.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.Voice},
			},
		}
	}
	if c.SystemInstruction != "" {
		s.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.SystemInstruction}},
		}
	}
	if c.ProactiveAudio {
		s.Proactivity = &genai.ProactivityConfig{ProactiveAudio: genai.Ptr(true)}
	}
	if c.OutputTranscription {
		s.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return s
}
