package broker

import (
	"bytes"
	"encoding/json"
	"strings"

	"scriptcheck/internal/services"
)

// VideoReadyMessage announces that an interview recording has been uploaded
// and is ready for audio extraction.
type VideoReadyMessage struct {
	InterviewID string `json:"interview_id"`
	Path        string `json:"path"`
}

// AudioReadyMessage announces that an interview's audio clips have been
// uploaded under the given storage prefix and are ready for analysis.
type AudioReadyMessage struct {
	InterviewID    string `json:"interview_id"`
	GCSAudioPrefix string `json:"gcs_audio_prefix"`
}

// Validate checks the envelope for the fields a consumer cannot work without.
func (m VideoReadyMessage) Validate() error {
	if strings.TrimSpace(m.InterviewID) == "" {
		return services.Wrap(services.ErrValidation, "broker", "decode", "video-ready message missing interview_id", nil)
	}
	if strings.TrimSpace(m.Path) == "" {
		return services.Wrap(services.ErrValidation, "broker", "decode", "video-ready message missing path", nil)
	}
	return nil
}

// Validate checks the envelope for the fields a consumer cannot work without.
func (m AudioReadyMessage) Validate() error {
	if strings.TrimSpace(m.InterviewID) == "" {
		return services.Wrap(services.ErrValidation, "broker", "decode", "audio-ready message missing interview_id", nil)
	}
	if strings.TrimSpace(m.GCSAudioPrefix) == "" {
		return services.Wrap(services.ErrValidation, "broker", "decode", "audio-ready message missing gcs_audio_prefix", nil)
	}
	return nil
}

// decodeStrict unmarshals an envelope rejecting unknown fields, so a
// malformed or mis-routed payload fails validation instead of being read
// permissively.
func decodeStrict(body []byte, target any, kind string) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return services.Wrap(services.ErrValidation, "broker", "decode", "malformed "+kind+" message", err)
	}
	return nil
}

// DecodeVideoReady parses and validates a video-ready envelope.
func DecodeVideoReady(body []byte) (VideoReadyMessage, error) {
	var msg VideoReadyMessage
	if err := decodeStrict(body, &msg, "video-ready"); err != nil {
		return msg, err
	}
	return msg, msg.Validate()
}

// DecodeAudioReady parses and validates an audio-ready envelope.
func DecodeAudioReady(body []byte) (AudioReadyMessage, error) {
	var msg AudioReadyMessage
	if err := decodeStrict(body, &msg, "audio-ready"); err != nil {
		return msg, err
	}
	return msg, msg.Validate()
}
