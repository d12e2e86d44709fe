// Package synth turns translated text into playable speech.
package synth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	ContentTypeMP3 = "audio/mpeg"
	ContentTypeWAV = "audio/wav"
)

var ErrEmptyText = errors.New("nothing to synthesize")

// Audio is a complete synthesized utterance.
type Audio struct {
	Data        []byte
	ContentType string
}

type Synthesizer interface {
	Name() string
	// Synthesize speaks text in the language identified by the speech code.
	Synthesize(ctx context.Context, text, code string) (*Audio, error)
}

// Config selects and configures a synthesizer engine.
type Config struct {
	Engine  string
	BaseURL string
	// Voices maps speech codes to piper voice names.
	Voices map[string]string
}

// New returns the synthesizer for cfg.Engine ("gtts" or "piper").
func New(cfg Config, logger *logrus.Logger) (Synthesizer, error) {
	switch cfg.Engine {
	case "gtts", "":
		return NewGTTS(cfg.BaseURL, logger), nil
	case "piper":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("piper synthesizer requires a base URL")
		}
		return NewPiper(cfg.BaseURL, cfg.Voices, logger), nil
	}
	return nil, fmt.Errorf("unknown synthesizer engine %q", cfg.Engine)
}
