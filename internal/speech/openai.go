package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go/v3"

	"scenevoice/internal/config"
)

// OpenAISynthesizer renders speech through an OpenAI-compatible audio
// endpoint and returns mp3 bytes.
type OpenAISynthesizer struct {
	client openai.Client
	model  string
	voice  string
}

// NewOpenAISynthesizer constructs a synthesizer from a shared client and config.
func NewOpenAISynthesizer(client openai.Client, cfg config.SpeechConfig) *OpenAISynthesizer {
	return &OpenAISynthesizer{
		client: client,
		model:  cfg.Model,
		voice:  cfg.Voice,
	}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if text == "" {
		return nil, fmt.Errorf("caption text is empty")
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("speech synthesis returned no audio")
	}

	return &Audio{Data: data, Format: "mp3"}, nil
}
