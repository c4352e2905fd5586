package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
)

var ErrVoiceUnavailable = errors.New("voice transcription unavailable")

// TranscribeRequest is a base64 encoded voice note.
type TranscribeRequest struct {
	Audio        string `json:"audio" validate:"required,base64"`
	Encoding     string `json:"encoding"`
	SampleRate   int    `json:"sample_rate" validate:"omitempty,gte=8000,lte=48000"`
	LanguageCode string `json:"language_code"`
}

// VoiceService turns voice notes into message text using Google Cloud Speech.
type VoiceService struct {
	client       *speech.Client
	languageCode string
}

// NewVoiceService connects to Cloud Speech when enabled. Without a client every
// transcription fails with ErrVoiceUnavailable.
func NewVoiceService(ctx context.Context, enabled bool, languageCode string) *VoiceService {
	if languageCode == "" {
		languageCode = "en-US"
	}
	if !enabled {
		return &VoiceService{languageCode: languageCode}
	}
	client, err := speech.NewClient(ctx)
	if err != nil {
		log.Printf("Warning: Failed to initialize speech client: %v", err)
		return &VoiceService{languageCode: languageCode}
	}
	return &VoiceService{client: client, languageCode: languageCode}
}

// Available reports whether voice notes can be transcribed.
func (s *VoiceService) Available() bool {
	return s.client != nil
}

// Transcribe returns the best transcript and its average confidence.
func (s *VoiceService) Transcribe(ctx context.Context, req TranscribeRequest) (string, float32, error) {
	if s.client == nil {
		return "", 0, userError(ErrVoiceUnavailable, "Voice notes are not supported, please type your message")
	}

	audioBytes, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return "", 0, userError(ErrInvalidInput, "Audio is not valid base64")
	}
	if len(audioBytes) == 0 {
		return "", 0, userError(ErrInvalidInput, "Audio data is empty")
	}

	if req.Encoding == "" {
		req.Encoding = "OGG_OPUS"
	}
	if req.SampleRate == 0 {
		req.SampleRate = 48000
	}
	if req.LanguageCode == "" {
		req.LanguageCode = s.languageCode
	}
	encoding, err := parseEncoding(req.Encoding)
	if err != nil {
		return "", 0, userError(ErrInvalidInput, "Unsupported audio encoding: %s", req.Encoding)
	}

	speechReq := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            int32(req.SampleRate),
			LanguageCode:               req.LanguageCode,
			EnableAutomaticPunctuation: false,
			Model:                      "latest_short",
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{
				Content: audioBytes,
			},
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := s.client.Recognize(timeoutCtx, speechReq)
	if err != nil {
		return "", 0, fmt.Errorf("recognition failed: %w", err)
	}

	var transcript strings.Builder
	var totalConfidence float32
	var count int
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		alternative := result.Alternatives[0]
		transcript.WriteString(alternative.Transcript)
		transcript.WriteString(" ")
		totalConfidence += alternative.Confidence
		count++
	}
	if count == 0 {
		return "", 0, userError(ErrInvalidInput, "Could not understand the voice note")
	}

	return strings.TrimSpace(transcript.String()), totalConfidence / float32(count), nil
}

func parseEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(encoding) {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

func (s *VoiceService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
