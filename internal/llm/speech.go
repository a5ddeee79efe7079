package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// SpeechClient wraps the OpenAI audio endpoints: Whisper transcription for
// inbound voice notes and speech synthesis for spoken replies.
type SpeechClient struct {
	client openai.Client
	log    logger.Logger
}

// NewSpeechClient creates a speech client against the OpenAI API.
func NewSpeechClient(apiKey string, log logger.Logger) (*SpeechClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("speech: API key is required")
	}
	return &SpeechClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		log:    log.WithFields(logger.StringField("component", "speech")),
	}, nil
}

// Transcribe converts audio bytes to text. The filename carries the format
// hint the API needs (e.g. "note.m4a").
func (s *SpeechClient) Transcribe(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	resp, err := s.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  openai.File(bytes.NewReader(data), filename, mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", filename, err)
	}

	s.log.Debug("transcription complete",
		logger.StringField("filename", filename),
		logger.IntField("chars", len(resp.Text)))

	return resp.Text, nil
}

// Synthesize renders text as MP3 audio bytes.
func (s *SpeechClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: openai.SpeechModelTTS1,
		Voice: openai.AudioSpeechNewParamsVoiceAlloy,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	return audio, nil
}
